package rules

import (
	"testing"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/flatten"
)

func TestDefaultRuleSourcesCompile(t *testing.T) {
	rules, err := CompileAll(DefaultRuleSources())
	if err != nil {
		t.Fatalf("CompileAll(DefaultRuleSources()) error = %v", err)
	}
	if len(rules) == 0 {
		t.Fatal("CompileAll() returned no rules")
	}
}

func TestDefaultRules(t *testing.T) {
	rs := Ruleset{Match: mustCompileAll(t, DefaultRuleSources())}

	tests := []struct {
		name  string
		event flatten.Flat
		want  bool
	}{
		{
			name: "console login without MFA",
			event: flatten.Flat{
				"eventName":                   "ConsoleLogin",
				"eventSource":                 "signin.amazonaws.com",
				"userIdentity.type":           "IAMUser",
				"userIdentity.arn":            "arn:aws:iam::111122223333:user/alice",
				"additionalEventData.MFAUsed": "No",
			},
			want: true,
		},
		{
			name: "console login with MFA",
			event: flatten.Flat{
				"eventName":                   "ConsoleLogin",
				"eventSource":                 "signin.amazonaws.com",
				"userIdentity.type":           "IAMUser",
				"userIdentity.arn":            "arn:aws:iam::111122223333:user/alice",
				"additionalEventData.MFAUsed": "Yes",
			},
			want: false,
		},
		{
			name: "sso login is skipped",
			event: flatten.Flat{
				"eventName":                   "ConsoleLogin",
				"eventSource":                 "signin.amazonaws.com",
				"userIdentity.type":           "AssumedRole",
				"userIdentity.arn":            "arn:aws:sts::111122223333:assumed-role/AWSReservedSSO_admin/alice",
				"additionalEventData.MFAUsed": "No",
			},
			want: false,
		},
		{
			name: "root activity",
			event: flatten.Flat{
				"eventName":         "CreateUser",
				"eventSource":       "iam.amazonaws.com",
				"userIdentity.type": "Root",
			},
			want: true,
		},
		{
			name: "access denied",
			event: flatten.Flat{
				"eventName":              "DescribeInstances",
				"eventSource":            "ec2.amazonaws.com",
				"userIdentity.type":      "IAMUser",
				"userIdentity.accountId": "111122223333",
				"errorCode":              "AccessDenied",
			},
			want: true,
		},
		{
			name: "access denied for anonymous principal is skipped",
			event: flatten.Flat{
				"eventName":              "GetObject",
				"eventSource":            "s3.amazonaws.com",
				"userIdentity.type":      "AWSAccount",
				"userIdentity.accountId": "ANONYMOUS_PRINCIPAL",
				"errorCode":              "AccessDenied",
			},
			want: false,
		},
		{
			name: "unauthorized operation",
			event: flatten.Flat{
				"eventName":         "RunInstances",
				"eventSource":       "ec2.amazonaws.com",
				"userIdentity.type": "IAMUser",
				"errorCode":         "Client.UnauthorizedOperation",
			},
			want: true,
		},
		{
			name: "trail tampering",
			event: flatten.Flat{
				"eventName":         "StopLogging",
				"eventSource":       "cloudtrail.amazonaws.com",
				"userIdentity.type": "IAMUser",
			},
			want: true,
		},
		{
			name: "guardduty detector deletion",
			event: flatten.Flat{
				"eventName":         "DeleteDetector",
				"eventSource":       "guardduty.amazonaws.com",
				"userIdentity.type": "IAMUser",
			},
			want: true,
		},
		{
			name: "config recorder stopped",
			event: flatten.Flat{
				"eventName":         "StopConfigurationRecorder",
				"eventSource":       "config.amazonaws.com",
				"userIdentity.type": "IAMUser",
			},
			want: true,
		},
		{
			name: "ordinary read is quiet",
			event: flatten.Flat{
				"eventName":         "DescribeInstances",
				"eventSource":       "ec2.amazonaws.com",
				"userIdentity.type": "IAMUser",
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := rs.Evaluate(tt.event)
			if result.Process != tt.want {
				t.Errorf("Evaluate() Process = %v, want %v (matched %q, errors %v)",
					result.Process, tt.want, result.MatchedRule, result.Errors)
			}
		})
	}
}

func TestEventsToTrackRule(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		expect map[string]bool
	}{
		{
			name: "two events",
			in:   "CreateUser, DeleteTrail",
			want: `event["eventName"] in ["CreateUser", "DeleteTrail"]`,
			expect: map[string]bool{
				"CreateUser":  true,
				"DeleteTrail": true,
				"PutObject":   false,
			},
		},
		{
			name: "whitespace and empty entries trimmed",
			in:   " ConsoleLogin ,, ",
			want: `event["eventName"] in ["ConsoleLogin"]`,
			expect: map[string]bool{
				"ConsoleLogin": true,
			},
		},
		{
			name: "empty input yields no rule",
			in:   "  ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EventsToTrackRule(tt.in)
			if got != tt.want {
				t.Fatalf("EventsToTrackRule(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if got == "" {
				return
			}
			rule := MustCompile(got)
			for eventName, want := range tt.expect {
				matched, err := rule.Matches(flatten.Flat{"eventName": eventName})
				if err != nil {
					t.Fatalf("Matches(%q) error = %v", eventName, err)
				}
				if matched != want {
					t.Errorf("Matches(%q) = %v, want %v", eventName, matched, want)
				}
			}
		})
	}
}

func mustCompileAll(t *testing.T, sources []string) []Rule {
	t.Helper()
	rules, err := CompileAll(sources)
	if err != nil {
		t.Fatalf("CompileAll() error = %v", err)
	}
	return rules
}
