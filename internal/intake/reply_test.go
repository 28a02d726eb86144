package intake

import (
	"strings"
	"testing"

	"github.com/zeladoria/zela/internal/session"
)

func TestMissingSlotPriority(t *testing.T) {
	photo := []session.AttachmentRef{{ID: "a1"}}
	coords := &session.Coordinates{Latitude: -23.5, Longitude: -46.6}

	tests := []struct {
		name  string
		slots session.Slots
		want  situation
	}{
		{"everything missing", session.Slots{}, situationAskPhoto},
		{"photo missing", session.Slots{Description: "x", Coordinates: coords}, situationAskPhoto},
		{"location missing", session.Slots{Description: "x", Photos: photo}, situationAskLocation},
		{"description missing", session.Slots{Coordinates: coords, Photos: photo}, situationAskDescription},
		{"address counts as location", session.Slots{AddressText: "Rua A", Photos: photo}, situationAskDescription},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := missingSlot(tt.slots); got != tt.want {
				t.Errorf("missingSlot = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNextStage(t *testing.T) {
	if got := nextStage(session.Slots{}); got != session.StageCollectingDescription {
		t.Errorf("empty slots: %s", got)
	}
	if got := nextStage(session.Slots{Description: "x"}); got != session.StageCollectingLocation {
		t.Errorf("description only: %s", got)
	}
	if got := nextStage(session.Slots{Description: "x", AddressText: "Rua A"}); got != session.StageCollectingPhoto {
		t.Errorf("description and address: %s", got)
	}
}

func TestPickVariantDeterministic(t *testing.T) {
	seed := variantSeed("5511999990000", 3)
	first := pickVariant(situationAskPhoto, seed)
	for i := 0; i < 10; i++ {
		if got := pickVariant(situationAskPhoto, seed); got != first {
			t.Fatalf("variant changed for same seed: %q vs %q", got, first)
		}
	}
	if pickVariant(situationAskPhoto, seed) == pickVariant(situationAskPhoto, seed+1) {
		t.Error("consecutive turns should rotate variants")
	}
}

func TestCommandWords(t *testing.T) {
	if !isCancelCommand("cancelar") || !isCancelCommand("CANCELAR") || !isCancelCommand("cancela tudo") {
		t.Error("cancel command not recognized")
	}
	if isCancelCommand("nao quero cancelar nada agora") {
		t.Error("cancel must lead the message, not appear anywhere")
	}
	if !isAffirmative("sim") || !isAffirmative("  SIM ") || !isAffirmative("ok") {
		t.Error("affirmative not recognized")
	}
	if !isNegative("nao") || !isNegative("não") {
		t.Error("negative not recognized")
	}
	if isAffirmative("talvez") {
		t.Error("ambiguous text treated as affirmative")
	}
}

func TestDemandAndStatusSignals(t *testing.T) {
	if !hasDemandSignal("tem um buraco enorme aqui") {
		t.Error("demand word missed")
	}
	if hasDemandSignal("bom dia, tudo bem?") {
		t.Error("small talk flagged as demand")
	}
	if !isStatusQuery("quero saber o andamento do pedido") {
		t.Error("status query missed")
	}
	if isStatusQuery("tem um buraco na rua") {
		t.Error("complaint flagged as status query")
	}
}

func TestExtractProtocol(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"meu protocolo e ZL-2026-0042", "ZL-2026-0042"},
		{"protocolo 2024-9999 por favor", "2024-9999"},
		{"202400123", "202400123"},
		{"nenhum numero aqui", ""},
		{"sim", ""},
	}
	for _, tt := range tests {
		if got := extractProtocol(tt.text); got != tt.want {
			t.Errorf("extractProtocol(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestCreatedAlternativesAreFormatted(t *testing.T) {
	alts := createdAlternatives("ZL-2026-0007")
	if len(alts) != len(replyVariants[situationCreated]) {
		t.Fatalf("alternatives = %d, want %d", len(alts), len(replyVariants[situationCreated]))
	}
	for _, alt := range alts {
		if strings.Contains(alt, "%s") {
			t.Errorf("alternative still a template: %q", alt)
		}
		if !strings.Contains(alt, "ZL-2026-0007") {
			t.Errorf("alternative lost the protocol: %q", alt)
		}
	}
}

func TestEveryFormatSituationHasVariants(t *testing.T) {
	for s, pool := range replyVariants {
		if len(pool) < 2 {
			t.Errorf("situation %s has %d variants, the repetition guard needs at least 2", s, len(pool))
		}
	}
}
