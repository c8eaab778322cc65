package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBalanceCredit(t *testing.T) {
	assert.True(t, IsBalanceCredit(Notification{Type: EventFundsCredited}))
	assert.False(t, IsBalanceCredit(Notification{Type: EventTransactionCompleted}))
	assert.False(t, IsBalanceCredit(Notification{Type: EventGenericAlert, Title: "funds_credited"}))
}

func TestIsSuspension(t *testing.T) {
	t.Run("ExplicitSuspensionType", func(t *testing.T) {
		assert.True(t, IsSuspension(Notification{Type: EventAccountSuspended}))
	})

	t.Run("RejectionWithMarkerInTitle", func(t *testing.T) {
		n := Notification{Type: EventKYCRejected, Title: "Account Suspended"}
		assert.True(t, IsSuspension(n))
	})

	t.Run("RejectionWithMarkerInBody", func(t *testing.T) {
		n := Notification{Type: EventKYCRejected, Title: "Verification update", Body: "Your account has been suspended pending review."}
		assert.True(t, IsSuspension(n))
	})

	t.Run("PlainRejectionIsNotSuspension", func(t *testing.T) {
		n := Notification{Type: EventKYCRejected, Title: "Verification failed", Body: "Please resubmit your documents."}
		assert.False(t, IsSuspension(n))
	})

	t.Run("MarkerOnOrdinaryTypeIgnored", func(t *testing.T) {
		n := Notification{Type: EventTransactionCompleted, Title: "suspended"}
		assert.False(t, IsSuspension(n))
	})
}
