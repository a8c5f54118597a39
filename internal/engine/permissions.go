package engine

import (
	"strconv"
	"strings"

	"task-manager-api/internal/metadata"
)

type Verb string

const (
	VerbList   Verb = "list"
	VerbShow   Verb = "show"
	VerbCreate Verb = "create"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
)

// Target is what a request touches. IDs are the addressed primary keys;
// Owners holds the owner id of every addressed row that exists (owned
// resources only); Filter is the parsed list filter.
type Target struct {
	IDs    []int64
	Owners []int64
	Filter FilterExpression
}

// Authorize applies the access rules for users and tasks. It returns nil
// when allowed, or a 401/403 AppError.
func Authorize(p *metadata.Principal, verb Verb, d *metadata.Descriptor, t Target) error {
	if p == nil {
		return UnauthorizedError()
	}

	switch d.Kind {
	case metadata.KindUser:
		return authorizeUser(p, verb, t)
	case metadata.KindTask:
		return authorizeOwned(p, verb, d, t)
	}
	return ForbiddenError("")
}

func authorizeUser(p *metadata.Principal, verb Verb, t Target) error {
	switch verb {
	case VerbList:
		if p.IsAdmin() {
			return nil
		}
	case VerbShow, VerbUpdate:
		if p.IsAdmin() || addressesOnly(t.IDs, p.ID) {
			return nil
		}
	case VerbDelete:
		if !p.IsAdmin() {
			return ForbiddenError("")
		}
		for _, id := range t.IDs {
			if id == p.ID {
				return ForbiddenError(MsgSelfDelete)
			}
		}
		return nil
	}
	// users are created through registration only
	return ForbiddenError("")
}

func authorizeOwned(p *metadata.Principal, verb Verb, d *metadata.Descriptor, t Target) error {
	if p.IsAdmin() {
		return nil
	}
	switch verb {
	case VerbCreate:
		return nil
	case VerbList:
		if filterPinsOwner(t.Filter, d.OwnerKey, p.ID) {
			return nil
		}
	case VerbShow, VerbUpdate, VerbDelete:
		if allOwnedBy(t.Owners, p.ID) {
			return nil
		}
	}
	return ForbiddenError("")
}

// filterPinsOwner reports whether the filter holds an equality pair on the
// owner column whose value is the principal's id.
func filterPinsOwner(f FilterExpression, ownerKey string, id int64) bool {
	for _, pair := range f {
		if pair.Key != ownerKey {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSpace(pair.Value), 10, 64)
		if err == nil && v == id {
			return true
		}
	}
	return false
}

func addressesOnly(ids []int64, id int64) bool {
	if len(ids) == 0 {
		return false
	}
	for _, v := range ids {
		if v != id {
			return false
		}
	}
	return true
}

// allOwnedBy is vacuously true for an empty list: ids that match no row are
// not an ownership violation.
func allOwnedBy(owners []int64, id int64) bool {
	for _, o := range owners {
		if o != id {
			return false
		}
	}
	return true
}
