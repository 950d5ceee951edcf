package wallet

import "errors"

var (
	// ErrPolicy is returned when a transfer violates the per-transaction or
	// daily spend limit. Policy rejections happen strictly before any network
	// call.
	ErrPolicy = errors.New("spend policy violation")

	// ErrQuery is returned when a balance read keeps failing after retries.
	ErrQuery = errors.New("balance query failed")

	// ErrSubmission is returned when a signed transaction is rejected by the
	// venue or never confirms. Submissions are not retried automatically:
	// resubmitting a signed transfer risks paying twice.
	ErrSubmission = errors.New("transaction submission failed")
)
