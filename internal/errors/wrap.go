package errors

import "fmt"

// Wrap adds context to an error at a package boundary and returns nil for a
// nil error, so it can be used inline:
//
//	return errors.Wrap(repo.Save(ctx, exec), "persist campaign execution")
//
// The original error stays in the chain for errors.Is:
//
//	if errors.Is(err, errors.ErrCampaignNotFound) { ... }
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf is Wrap with a formatted message:
//
//	return errors.Wrapf(err, "load dataset %s", id)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}
