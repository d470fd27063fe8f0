package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultRuleSources returns the built-in match rules: console sign-ins
// without MFA, root account activity, denied API calls, and tampering with
// audit and detection services.
func DefaultRuleSources() []string {
	return []string{
		`event["eventName"] == "ConsoleLogin" and get("additionalEventData.MFAUsed", "") != "Yes" and get("userIdentity.sessionContext.attributes.mfaAuthenticated", "") != "true" and not contains(get("userIdentity.arn", ""), "AWSReservedSSO")`,
		`endswith(get("errorCode", ""), "UnauthorizedOperation")`,
		`startswith(get("errorCode", ""), "AccessDenied") and get("userIdentity.accountId", "") != "ANONYMOUS_PRINCIPAL"`,
		`event["userIdentity.type"] == "Root"`,
		`event["eventSource"] == "cloudtrail.amazonaws.com" and event["eventName"] in ["StopLogging", "DeleteTrail", "UpdateTrail", "PutEventSelectors"]`,
		`event["eventSource"] == "guardduty.amazonaws.com" and event["eventName"] == "DeleteDetector"`,
		`event["eventSource"] == "config.amazonaws.com" and event["eventName"] in ["StopConfigurationRecorder", "DeleteConfigurationRecorder"]`,
	}
}

// EventsToTrackRule builds one match rule from a comma-separated list of
// event names, so operators can track specific API calls without writing
// expressions.
func EventsToTrackRule(eventsToTrack string) string {
	var quoted []string
	for _, name := range strings.Split(eventsToTrack, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		quoted = append(quoted, strconv.Quote(name))
	}
	if len(quoted) == 0 {
		return ""
	}
	return fmt.Sprintf(`event["eventName"] in [%s]`, strings.Join(quoted, ", "))
}
