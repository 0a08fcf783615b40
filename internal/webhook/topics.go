package webhook

import "strings"

const (
	TopicPaymentSucceeded = "payment_intent_succeeded"
	TopicPaymentFailed    = "payment_intent_payment_failed"
)

// NormalizeTopic converts processor event types (e.g. "payment_intent.succeeded")
// into a stable internal form ("payment_intent_succeeded").
func NormalizeTopic(topic string) string {
	t := strings.TrimSpace(strings.ToLower(topic))
	t = strings.ReplaceAll(t, "/", "_")
	t = strings.ReplaceAll(t, ".", "_")
	t = strings.ReplaceAll(t, "-", "_")
	for strings.Contains(t, "__") {
		t = strings.ReplaceAll(t, "__", "_")
	}
	return strings.Trim(t, "_")
}
