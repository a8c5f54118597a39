package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Resolve(t *testing.T) {
	reg := DefaultRegistry()

	user, err := reg.Resolve("user")
	require.NoError(t, err)
	assert.Equal(t, KindUser, user.Kind)
	assert.Equal(t, "users", user.Table)

	tasks, err := reg.Resolve("tasks")
	require.NoError(t, err)
	assert.Equal(t, KindTask, tasks.Kind)
	assert.Equal(t, "user_id", tasks.OwnerKey)
}

func TestRegistry_ResolveUnknownToken(t *testing.T) {
	reg := DefaultRegistry()
	for _, token := range []string{"users", "task", "User", "", "projects"} {
		_, err := reg.Resolve(token)
		assert.ErrorIs(t, err, ErrUnknownResource, token)
	}
}

func TestRegistry_RelationsOf(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, []string{"tasks"}, reg.RelationsOf(reg.Get(KindUser)))
	assert.Equal(t, []string{"user"}, reg.RelationsOf(reg.Get(KindTask)))
}

func TestRegistry_Tables(t *testing.T) {
	assert.Equal(t, []string{"users", "tasks"}, DefaultRegistry().Tables())
}

func TestDescriptor_StripHidden(t *testing.T) {
	row := map[string]any{"id": 1, "email": "a@b.c", "password": "hash", "remember_token": "x"}
	UserResource().StripHidden(row)
	assert.Equal(t, map[string]any{"id": 1, "email": "a@b.c"}, row)
}

func TestDescriptor_Relations(t *testing.T) {
	task := TaskResource()
	rel := task.GetRelation("user")
	require.NotNil(t, rel)
	assert.Equal(t, BelongsTo, rel.Type)
	assert.Equal(t, KindUser, rel.Target)
	assert.Nil(t, task.GetRelation("comments"))
	assert.True(t, task.IsFillable("due_date"))
	assert.False(t, task.IsFillable("user_id"))
}

func TestPrincipal_IsAdmin(t *testing.T) {
	var p *Principal
	assert.False(t, p.IsAdmin())
	assert.True(t, (&Principal{ID: 1, Admin: true}).IsAdmin())
}
