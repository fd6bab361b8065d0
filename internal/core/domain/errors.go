package domain

import "errors"

var (
	ErrPolicyNotFound      = errors.New("rate limit policy not found")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrUpdateFailed        = errors.New("rate limit update did not take effect")
	ErrInvalidLimit        = errors.New("rate limit must be zero or greater")
	ErrInvalidSubject      = errors.New("subject id is required")
	ErrInvalidPolicy       = errors.New("invalid rate limit policy")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrInvalidUser         = errors.New("invalid user")
	ErrJokeNotFound        = errors.New("joke not found")
	ErrProviderUnavailable = errors.New("joke provider unavailable")
)

func IsPolicyNotFound(err error) bool {
	return errors.Is(err, ErrPolicyNotFound)
}

func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

func IsUpdateFailed(err error) bool {
	return errors.Is(err, ErrUpdateFailed)
}

// IsInvalidInput reports whether err was caused by caller input rather than
// infrastructure.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidLimit) ||
		errors.Is(err, ErrInvalidSubject) ||
		errors.Is(err, ErrInvalidPolicy) ||
		errors.Is(err, ErrInvalidUser)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrJokeNotFound) || errors.Is(err, ErrPolicyNotFound)
}
