package orders

import (
	"encoding/json"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductRef accepts the two shapes clients send for items[].product: a plain
// hex id string, or an expanded product document carrying its own _id. Either
// way it is canonicalized to the object id before any business logic runs.
type ProductRef struct {
	id    primitive.ObjectID
	valid bool
}

var errBadProductRef = errors.New("product reference must be an id or an object with _id")

func (r *ProductRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return errBadProductRef
		}
		r.id, r.valid = id, true
		return nil
	}

	var obj struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil || obj.ID == "" {
		return errBadProductRef
	}
	id, err := primitive.ObjectIDFromHex(obj.ID)
	if err != nil {
		return errBadProductRef
	}
	r.id, r.valid = id, true
	return nil
}

func (r ProductRef) MarshalJSON() ([]byte, error) {
	if !r.valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.id.Hex())
}

func (r ProductRef) IsZero() bool { return !r.valid }

func (r ProductRef) ObjectID() primitive.ObjectID { return r.id }

// RefTo builds a ProductRef for a known id, mostly for tests and fixtures.
func RefTo(id primitive.ObjectID) ProductRef { return ProductRef{id: id, valid: true} }
