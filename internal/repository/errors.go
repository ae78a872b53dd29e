package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// ErrWalletExists indicates the user already owns a wallet.
var ErrWalletExists = errors.New("repository: wallet already exists")
