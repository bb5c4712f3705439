package model

import (
	"errors"
	"fmt"
)

var ErrorUnauthenticated = errors.New("unauthenticated")
var ErrorUnauthorized = errors.New("unauthorized")
var ErrorNotFound = errors.New("not found")
var ErrorConflict = errors.New("conflict")
var ErrorInvalidInput = errors.New("invalid input")
var ErrorUpstream = errors.New("upstream error")
var ErrorUnavailable = errors.New("unavailable")
var ErrorCrypto = errors.New("crypto error")
var ErrorSignatureInvalid = errors.New("signature invalid")
var ErrorVaultMisconfigured = errors.New("credential encryption key is not configured")

var ErrorPostAlreadyPublished = fmt.Errorf("%w: post already published", ErrorConflict)
var ErrorPublishInProgress = fmt.Errorf("%w: publish already in progress", ErrorConflict)
var ErrorEmptyContent = fmt.Errorf("%w: empty content", ErrorInvalidInput)
