package metadata

// Kind identifies one of the resource types exposed through the generic
// CRUD routes. The set is closed.
type Kind int

const (
	KindUser Kind = iota + 1
	KindTask
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindTask:
		return "task"
	default:
		return "unknown"
	}
}

// PrimaryKey is the primary key column shared by every resource table.
const PrimaryKey = "id"

// ForeignKeySuffix marks columns that reference another resource.
const ForeignKeySuffix = "_id"

type RelationType string

const (
	HasMany   RelationType = "has_many"
	BelongsTo RelationType = "belongs_to"
)

// Relation is an eager-loadable association. ForeignKey always names the
// column on the child side (tasks.user_id for both directions).
type Relation struct {
	Name       string       `json:"name"`
	Type       RelationType `json:"type"`
	Target     Kind         `json:"target"`
	ForeignKey string       `json:"foreign_key"`
}

// Descriptor is the static metadata of a resource.
type Descriptor struct {
	Kind      Kind       `json:"kind"`
	Name      string     `json:"name"` // route token
	Table     string     `json:"table"`
	Fillable  []string   `json:"fillable"`
	Hidden    []string   `json:"hidden"`
	Relations []Relation `json:"relations"`
	// OwnerKey is the column holding the owning user's id, empty when the
	// resource is not owned (users own themselves).
	OwnerKey string `json:"owner_key,omitempty"`
}

// GetRelation returns the relation with the given name, or nil.
func (d *Descriptor) GetRelation(name string) *Relation {
	for i := range d.Relations {
		if d.Relations[i].Name == name {
			return &d.Relations[i]
		}
	}
	return nil
}

// RelationNames returns the declared relation names in declaration order.
func (d *Descriptor) RelationNames() []string {
	names := make([]string, len(d.Relations))
	for i, r := range d.Relations {
		names[i] = r.Name
	}
	return names
}

func (d *Descriptor) IsHidden(column string) bool {
	return contains(d.Hidden, column)
}

func (d *Descriptor) IsFillable(column string) bool {
	return contains(d.Fillable, column)
}

// StripHidden removes hidden columns from a row in place.
func (d *Descriptor) StripHidden(row map[string]any) {
	for _, h := range d.Hidden {
		delete(row, h)
	}
}

// UserResource describes the users table.
func UserResource() *Descriptor {
	return &Descriptor{
		Kind:     KindUser,
		Name:     "user",
		Table:    "users",
		Fillable: []string{"name", "email", "password", "email_verified_at"},
		Hidden:   []string{"password", "remember_token"},
		Relations: []Relation{
			{Name: "tasks", Type: HasMany, Target: KindTask, ForeignKey: "user_id"},
		},
	}
}

// TaskResource describes the tasks table.
func TaskResource() *Descriptor {
	return &Descriptor{
		Kind:     KindTask,
		Name:     "tasks",
		Table:    "tasks",
		Fillable: []string{"title", "description", "due_date"},
		Relations: []Relation{
			{Name: "user", Type: BelongsTo, Target: KindUser, ForeignKey: "user_id"},
		},
		OwnerKey: "user_id",
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
