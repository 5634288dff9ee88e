package repository

import (
	"database/sql"
	"errors"
	"time"

	"museum.zuyanh.net/internal/entity"
)

var (
	ErrRecordNotFound      = errors.New("record not found")
	ErrEditConflict        = errors.New("edit conflict")
	ErrDuplicateConstraint = errors.New("duplicate constraint")
	ErrDuplicateEmail      = errors.New("duplicate email")
	ErrViolatesForeignKey  = errors.New("violates foreign key constraint")
	ErrInvalidType         = errors.New("invalid type")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrEventFull           = errors.New("event is fully booked")
	ErrDuplicateReference  = errors.New("could not allocate a unique reference")
)

type Models struct {
	DB      *sql.DB
	Museums interface {
		Insert(museum *entity.Museum) error
		Get(id int64) (*entity.Museum, error)
		Update(museum *entity.Museum) error
		Delete(id int64) error
		GetAll(q string, city string, category string, filters Filters) ([]*entity.Museum, Metadata, error)
	}
	Events interface {
		Insert(event *entity.Event) error
		Get(id int64) (*entity.Event, error)
		Update(event *entity.Event) error
		Delete(id int64) error
		GetAll(museumID int64, q string, date string, upcoming bool, filters Filters) ([]*entity.Event, Metadata, error)
	}
	Bookings interface {
		Insert(booking *entity.Booking) error
		Get(id int64) (*entity.Booking, error)
		GetByReference(reference string) (*entity.Booking, error)
		GetAll(userID int64, museumID int64, status string, visitDate string, filters Filters) ([]*entity.Booking, Metadata, error)
		UpdateStatus(booking *entity.Booking, to entity.BookingStatus) error
		ExpirePending(olderThan time.Duration) (int64, error)
	}
	Registrations interface {
		Insert(registration *entity.Registration) error
		GetByReference(reference string) (*entity.Registration, error)
		GetAllForEvent(eventID int64, filters Filters) ([]*entity.Registration, Metadata, error)
		GetAllForUser(userID int64, filters Filters) ([]*entity.Registration, Metadata, error)
		UpdateStatus(registration *entity.Registration, to entity.RegistrationStatus) error
	}
	Users interface {
		Insert(user *entity.User) error
		GetByEmail(email string) (*entity.User, error)
		Update(user *entity.User) error
		GetForToken(tokenScope, tokenPlaintext string) (*entity.User, error)
	}
	Tokens interface {
		New(userID int64, ttl time.Duration, scope string) (*entity.Token, error)
		Insert(token *entity.Token) error
		DeleteAllForUser(scope string, userID int64) error
	}
	Permissions interface {
		GetAllForUser(userID int64) (Permissions, error)
		AddForUser(userID int64, codes ...string) error
	}
	Stats interface {
		Summary() (*Summary, error)
	}
}

func NewModel(db *sql.DB) Models {
	return Models{
		DB:            db,
		Museums:       MuseumModel{DB: db},
		Events:        EventModel{DB: db},
		Bookings:      BookingModel{DB: db},
		Registrations: RegistrationModel{DB: db},
		Users:         UserModel{DB: db},
		Tokens:        TokenModel{DB: db},
		Permissions:   PermissionModel{DB: db},
		Stats:         StatsModel{DB: db},
	}
}
