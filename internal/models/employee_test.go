package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

// gorm swaps zero values for column defaults on insert, so a defaulted bool could never
// be created as false.
func TestEmployeeActiveFlagHasNoDefault(t *testing.T) {
	s, err := schema.Parse(&Employee{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	field := s.LookUpField("IsActive")
	require.NotNil(t, field)
	assert.False(t, field.HasDefaultValue)
	assert.True(t, field.NotNull)
}

func TestEmployeeRoleValid(t *testing.T) {
	assert.True(t, RoleTechnician.Valid())
	assert.True(t, RoleScheduler.Valid())
	assert.True(t, RoleManager.Valid())
	assert.False(t, EmployeeRole("owner").Valid())
	assert.False(t, EmployeeRole("").Valid())
}
