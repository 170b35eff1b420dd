package service

import "fmt"

// Default texts sent by the relay. Kept minimal; they are not part of the
// engine's contract.
const (
	textApology       = "Sorry, we couldn't forward your request. Please try again in a moment."
	textSlowDown      = "You're sending messages too quickly. Please wait a few seconds and try again."
	textBudgetMissing = "Please resend your request including a budget (for example 50€)."
	textUnknown       = "Request not found."
)

func textConfirmation(requestID string) string {
	return fmt.Sprintf("Request %s received. We'll let you know as soon as we have news.", requestID)
}

func textOutcome(positive bool, requestID string) string {
	if positive {
		return fmt.Sprintf("Good news! We found the item for request %s. Staff will contact you shortly.", requestID)
	}
	return fmt.Sprintf("Sorry, we couldn't find the item for request %s.", requestID)
}

func textStaffMessage(requestID, content string) string {
	return fmt.Sprintf("Message from staff about request %s:\n%s", requestID, content)
}

func textAckNotified(requestID string) string {
	return fmt.Sprintf("Request %s resolved, requester notified.", requestID)
}

func textAckNotDelivered(requestID string, err error) string {
	return fmt.Sprintf("Request %s resolved, but the requester could not be notified: %v", requestID, err)
}

func textAckAlreadyHandled(requestID, status string) string {
	return fmt.Sprintf("Request %s was already handled (%s).", requestID, status)
}

func textAckReplyFailed(requestID string, err error) string {
	return fmt.Sprintf("Could not deliver your reply for request %s: %v", requestID, err)
}
