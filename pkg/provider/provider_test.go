package provider

import (
	"testing"

	"github.com/13108387302/aigate/pkg/types"
)

func TestCapabilityFor(t *testing.T) {
	cases := []struct {
		reqType types.RequestType
		want    Capability
	}{
		{types.TypeGenerate, CapTextGeneration},
		{types.TypeChat, CapConversation},
		{types.TypeTranslate, CapTranslation},
		{types.TypeSummarize, CapSummarization},
		{types.TypeRewrite, CapCreativeWriting},
		{types.TypeContinue, CapTextGeneration},
		{types.TypeImprove, CapCreativeWriting},
		{types.TypeProofread, CapCreativeWriting},
		{types.TypeBrainstorm, CapCreativeWriting},
		{types.TypeAnalyze, CapCodeGeneration},
		{types.RequestType("unknown"), CapTextGeneration},
	}
	for _, tc := range cases {
		if got := CapabilityFor(tc.reqType); got != tc.want {
			t.Errorf("CapabilityFor(%q) = %q, want %q", tc.reqType, got, tc.want)
		}
	}
}

func TestSupports(t *testing.T) {
	caps := []Capability{CapConversation, CapTranslation}

	if !Supports(caps, types.TypeChat) {
		t.Error("Supports() = false for a covered type")
	}
	if Supports(caps, types.TypeSummarize) {
		t.Error("Supports() = true for an uncovered type")
	}
	if !Supports(nil, types.TypeAnalyze) {
		t.Error("empty capability list should accept every type")
	}
}
