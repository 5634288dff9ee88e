package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/lib/pq"
)

const (
	BookingReferencePrefix      = "MUSEUM"
	RegistrationReferencePrefix = "EVENT"

	maxReferenceAttempts = 3
)

// NewReference returns a display reference such as MUSEUM-123456-7890: the
// last six digits of the current unix milliseconds and a random 4-digit
// suffix. It is not unique on its own; inserts rely on the unique index.
func NewReference(prefix string) string {
	millis := time.Now().UnixMilli() % 1_000_000
	return fmt.Sprintf("%s-%06d-%04d", prefix, millis, 1000+rand.IntN(9000))
}

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// jsonb adapts a Go value to a jsonb column. lib/pq would encode []byte as
// bytea, so Value hands the driver a string.
type jsonb struct {
	v any
}

func (j jsonb) Value() (driver.Value, error) {
	b, err := json.Marshal(j.v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j jsonb) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(s, j.v)
	case string:
		return json.Unmarshal([]byte(s), j.v)
	default:
		return fmt.Errorf("jsonb: cannot scan %T", src)
	}
}
