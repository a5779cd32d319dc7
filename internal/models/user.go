package models

import (
	"errors"
	"regexp"

	"github.com/jellydator/validation"
	"golang.org/x/crypto/bcrypt"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// MaxPasswordBytes is the longest input bcrypt will hash.
const MaxPasswordBytes = 72

func passwordFitsHash(value interface{}) error {
	if s, _ := value.(string); len(s) > MaxPasswordBytes {
		return errors.New("must be at most 72 bytes")
	}
	return nil
}

// User is a directory entry. PasswordHash is a bcrypt hash, the plaintext is never stored.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	AccountNo    string `json:"accountNo"`
	IFSCCode     string `json:"ifscCode"`
	PasswordHash string `json:"passwordHash"`
	JoinedDate   string `json:"joinedDate"`
	Avatar       string `json:"avatar,omitempty"`
}

// VerifyPassword reports whether password matches the stored hash.
func (u User) VerifyPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (u User) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.ID, validation.Required),
		validation.Field(&u.Name, validation.Required),
		validation.Field(&u.Email, validation.Required, validation.Match(emailPattern)),
		validation.Field(&u.PasswordHash, validation.Required),
	)
}

// NewUser carries signup fields. Password is hashed by the directory.
type NewUser struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	AccountNo string `json:"accountNo"`
	IFSCCode  string `json:"ifscCode"`
	Password  string `json:"password"`
	Avatar    string `json:"avatar,omitempty"`
}

func (n NewUser) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Name, validation.Required),
		validation.Field(&n.Email, validation.Required, validation.Match(emailPattern)),
		validation.Field(&n.Password, validation.Required, validation.By(passwordFitsHash)),
	)
}

// UserUpdate is a partial update; nil fields are left untouched.
type UserUpdate struct {
	Name      *string `json:"name,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	AccountNo *string `json:"accountNo,omitempty"`
	IFSCCode  *string `json:"ifscCode,omitempty"`
	Avatar    *string `json:"avatar,omitempty"`
}

func (u UserUpdate) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Name, validation.NilOrNotEmpty),
		validation.Field(&u.Email, validation.NilOrNotEmpty, validation.Match(emailPattern)),
	)
}

// Apply merges the non-nil fields of u into user.
func (u UserUpdate) Apply(user *User) {
	if u.Name != nil {
		user.Name = *u.Name
	}
	if u.Email != nil {
		user.Email = *u.Email
	}
	if u.Phone != nil {
		user.Phone = *u.Phone
	}
	if u.AccountNo != nil {
		user.AccountNo = *u.AccountNo
	}
	if u.IFSCCode != nil {
		user.IFSCCode = *u.IFSCCode
	}
	if u.Avatar != nil {
		user.Avatar = *u.Avatar
	}
}

// ProfileUpdate is what the profile screen submits. All fields are required.
type ProfileUpdate struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	AccountNo string `json:"accountNo"`
	IFSCCode  string `json:"ifscCode"`
}

func (p ProfileUpdate) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(2, 0)),
		validation.Field(&p.Email, validation.Required, validation.Match(emailPattern)),
		validation.Field(&p.Phone, validation.Required, validation.Length(10, 0)),
		validation.Field(&p.AccountNo, validation.Required, validation.Length(10, 0)),
		validation.Field(&p.IFSCCode, validation.Required, validation.Length(8, 0)),
	)
}
