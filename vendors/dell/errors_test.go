package dell

import (
	"errors"
	"testing"

	"github.com/nanoncore/nano-switchctrl/types"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		diag        string
		code        ErrorCode
		recoverable bool
	}{
		{"VLAN does not exist", ErrVLANNotFound, false},
		{"Invalid input detected at '^' marker.", ErrUnknownCommand, false},
		{"Configuration is locked by another session", ErrConfigBusy, true},
		{"Copy operation in progress", ErrConfigBusy, true},
		{"Something unexpected", ErrUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.diag, func(t *testing.T) {
			got := Translate(tt.diag)
			if got.Code != tt.code {
				t.Errorf("Translate() code = %s, want %s", got.Code, tt.code)
			}
			if got.Recoverable != tt.recoverable {
				t.Errorf("Translate() recoverable = %v, want %v", got.Recoverable, tt.recoverable)
			}
		})
	}
}

func TestTranslateError(t *testing.T) {
	rejected := types.Failure("VLAN does not exist").Err(types.OpAddPort)
	err := translateError(rejected)

	if !errors.Is(err, types.ErrReplyFailure) {
		t.Errorf("translateError() lost the error kind: %v", err)
	}
	if got := types.Diagnostic(err); got != "VLAN does not exist" {
		t.Errorf("Diagnostic() = %q", got)
	}
	if got := GetErrorCode(err); got != ErrVLANNotFound {
		t.Errorf("GetErrorCode() = %s, want %s", got, ErrVLANNotFound)
	}
	if GetSuggestedAction(err) == "" {
		t.Error("GetSuggestedAction() is empty")
	}

	timeout := types.Errorf(types.KindTimeout, "read", "no prompt")
	if got := translateError(timeout); got != error(timeout) {
		t.Errorf("translateError() changed a non-rejection error: %v", got)
	}
	if GetErrorCode(timeout) != ErrUnknown || IsRecoverable(timeout) {
		t.Error("untranslated error reported a code or as recoverable")
	}
}
