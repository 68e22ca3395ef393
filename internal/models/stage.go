package models

import (
	"time"
)

// OrderStage is one step of the fixed operational lifecycle of an order.
type OrderStage string

const (
	StageSurvey       OrderStage = "survey"
	StageDesign       OrderStage = "design"
	StageProduction   OrderStage = "production"
	StageInstallation OrderStage = "installation"
	StageQualityCheck OrderStage = "quality_check"
	StageCompleted    OrderStage = "completed"
)

type StageDefinition struct {
	Stage                OrderStage `json:"stage"`
	Description          string     `json:"description"`
	CompletionPercentage int        `json:"completion_percentage"`
}

// stageCatalog is ordered; each stage may only be followed by the next entry.
var stageCatalog = []StageDefinition{
	{Stage: StageSurvey, Description: "Vehicle survey and measurements", CompletionPercentage: 10},
	{Stage: StageDesign, Description: "Decal design and customer approval", CompletionPercentage: 30},
	{Stage: StageProduction, Description: "Printing and cutting", CompletionPercentage: 55},
	{Stage: StageInstallation, Description: "Application on the vehicle", CompletionPercentage: 80},
	{Stage: StageQualityCheck, Description: "Final inspection", CompletionPercentage: 95},
	{Stage: StageCompleted, Description: "Handed over to the customer", CompletionPercentage: 100},
}

// Stages returns a copy of the stage catalog in lifecycle order.
func Stages() []StageDefinition {
	out := make([]StageDefinition, len(stageCatalog))
	copy(out, stageCatalog)
	return out
}

func FirstStage() OrderStage {
	return stageCatalog[0].Stage
}

func (s OrderStage) index() int {
	for i, def := range stageCatalog {
		if def.Stage == s {
			return i
		}
	}
	return -1
}

func (s OrderStage) Valid() bool {
	return s.index() >= 0
}

func (s OrderStage) Definition() (StageDefinition, bool) {
	i := s.index()
	if i < 0 {
		return StageDefinition{}, false
	}
	return stageCatalog[i], true
}

func (s OrderStage) IsTerminal() bool {
	return s.index() == len(stageCatalog)-1
}

// Next returns the immediate successor. The terminal stage and unknown stages have none.
func (s OrderStage) Next() (OrderStage, bool) {
	i := s.index()
	if i < 0 || i == len(stageCatalog)-1 {
		return "", false
	}
	return stageCatalog[i+1].Stage, true
}

// NextStage returns the legal next stage given the current one; nil current means the
// order has no history yet.
func NextStage(current *OrderStage) (OrderStage, bool) {
	if current == nil {
		return FirstStage(), true
	}
	return current.Next()
}

// CanTransition reports whether candidate is the immediate successor of current.
func CanTransition(current *OrderStage, candidate OrderStage) bool {
	next, ok := NextStage(current)
	return ok && next == candidate
}

// OrderStageHistory is an append-only stage transition record. Only Notes may be corrected.
type OrderStageHistory struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	OrderID   uint       `json:"order_id" gorm:"not null;index:idx_stage_history_order_changed,priority:1"`
	Stage     OrderStage `json:"stage" gorm:"type:varchar(32);not null"`
	ChangedAt time.Time  `json:"changed_at" gorm:"not null;index:idx_stage_history_order_changed,priority:2"`
	ActorID   *uint      `json:"actor_id"`
	Notes     string     `json:"notes" gorm:"type:text"`
	CreatedAt time.Time  `json:"created_at"`
}

func (OrderStageHistory) TableName() string {
	return "order_stage_history"
}
