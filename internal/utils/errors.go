package utils

import "errors"

// ----------------- storage ------------------
var (
	ErrStorageEmptyHostName       = errors.New("host name is empty")
	ErrStorageInvalidPortNumber   = errors.New("port number is empty")
	ErrStorageEmptyUsername       = errors.New("username is empty")
	ErrStorageEmptyPassword       = errors.New("password is empty")
	ErrStorageInvalidDatabaseName = errors.New("database name is empty")
	ErrStorageInvalidSslMode      = errors.New("SSL mode is invalid")
	ErrStorageInvalidPoolSize     = errors.New("pool size is invalid")
	ErrStorageInvalidTimeout      = errors.New("timeout is invalid")
)

// ----------------- cache ------------------
var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// ----------------- sync engine ------------------
var (
	ErrSyncInProgress    = errors.New("sync already in progress for merchant")
	ErrConflictNotFound  = errors.New("pending conflict not found")
	ErrUnknownStrategy   = errors.New("unknown resolution strategy")
	ErrUnknownDirective  = errors.New("unknown resolution directive")
	ErrInvalidMerchantID = errors.New("invalid merchant id")
	ErrInvalidProductID  = errors.New("invalid product id")
)

// ----------------- direct order ------------------
var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)
