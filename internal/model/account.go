package model

import (
	"errors"
	"time"
)

// Account is the identity tuple for one signed-in fediverse account.
// Issued by the sign-in flow with its tokens already acquired; immutable
// until the account is signed out and the row is deleted.
type Account struct {
	ID          int64     `db:"id" json:"id"`
	Domain      string    `db:"domain" json:"domain"`
	UserID      string    `db:"user_id" json:"user_id"`
	Username    string    `db:"username" json:"username"`
	AccessToken string    `db:"access_token" json:"-"`
	AppToken    string    `db:"app_token" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Acct returns the "@user@domain" handle used for shortcut titles.
func (a Account) Acct() string {
	return "@" + a.Username + "@" + a.Domain
}

// RemoteAccount is the locally cached profile of a toggle target. Locked
// accounts require follow approval, so a follow lands as a pending request.
type RemoteAccount struct {
	ID     string `json:"id"`
	Acct   string `json:"acct"`
	Locked bool   `json:"locked"`
}

// Error codes returned alongside HTTP errors
const (
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already signed in")

	// ErrInvalidContext means a mutation's local accounts could not be
	// resolved; no optimistic write happens in that case.
	ErrInvalidContext = errors.New("cannot resolve local mutation context")
)
