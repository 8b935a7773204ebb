package tax

import (
	"github.com/taxflow/backend/internal/domain/shared"
)

// Validation errors raised before any external call is attempted. Groups
// failing these checks are skipped without a ledger record.
var (
	// ErrAdjustmentExceedsOriginal: the net adjustment for a return line is
	// larger in magnitude than the originally taxed amount.
	ErrAdjustmentExceedsOriginal = shared.NewDomainError("ADJUSTMENT_EXCEEDS_ORIGINAL", "Net adjustment exceeds the originally taxed amount")

	// ErrMissingReferenceCode: a return document was requested without the
	// original sale's correlation code.
	ErrMissingReferenceCode = shared.NewDomainError("MISSING_REFERENCE_CODE", "Return document requires the original call's reference code")

	// ErrEmptyDocument: a document with no lines was requested.
	ErrEmptyDocument = shared.NewDomainError("EMPTY_DOCUMENT", "Document has no lines")

	// ErrIncompleteAddress: the account address carries neither a full
	// street address nor a postal code + country pair.
	ErrIncompleteAddress = shared.NewDomainError("INCOMPLETE_ADDRESS", "Address is insufficient for a jurisdiction lookup")
)
