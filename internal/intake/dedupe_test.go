package intake

import "testing"

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		previous  string
		want      float64
	}{
		{
			name:      "identical",
			candidate: "Pode enviar uma foto do problema?",
			previous:  "Pode enviar uma foto do problema?",
			want:      1,
		},
		{
			name:      "disjoint",
			candidate: "Onde fica o problema exatamente?",
			previous:  "Pedido registrado com sucesso hoje.",
			want:      0,
		},
		{
			name:      "short words ignored",
			candidate: "o e de um",
			previous:  "o e de um",
			want:      0,
		},
		{
			name:      "half overlap",
			candidate: "enviar foto agora mesmo",
			previous:  "enviar foto amanha talvez",
			want:      0.5,
		},
		{
			name:      "punctuation stripped",
			candidate: "foto, problema!",
			previous:  "foto problema",
			want:      1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.candidate, tt.previous)
			if got != tt.want {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.candidate, tt.previous, got, tt.want)
			}
		})
	}
}

func TestSimilarityIsDeterministic(t *testing.T) {
	a, b := "buraco enorme na avenida central", "buraco pequeno na avenida lateral"
	first := Similarity(a, b)
	for i := 0; i < 100; i++ {
		if got := Similarity(a, b); got != first {
			t.Fatalf("similarity changed between calls: %v vs %v", got, first)
		}
	}
}

func TestDedupeSubstitutesAlternative(t *testing.T) {
	recent := []string{"Pode enviar uma foto do problema? Ela ajuda a equipe."}
	candidate := "Pode enviar uma foto do problema? Ela ajuda muito."
	alternatives := []string{
		candidate,
		"Agora me mande uma imagem do local, por favor.",
	}
	got := Dedupe(candidate, recent, alternatives)
	if got != alternatives[1] {
		t.Errorf("Dedupe = %q, want the fresh alternative", got)
	}
}

func TestDedupeKeepsNonRepetitiveCandidate(t *testing.T) {
	recent := []string{"Pedido registrado! Protocolo ZL-2026-0001."}
	candidate := "Onde fica o problema? Envie o endereco."
	if got := Dedupe(candidate, recent, nil); got != candidate {
		t.Errorf("Dedupe = %q, want candidate unchanged", got)
	}
}

func TestDedupeFallsBackWhenAllAlternativesCollide(t *testing.T) {
	recent := []string{
		"Pode enviar uma foto do problema agora?",
		"Agora me mande uma foto do local, por favor.",
	}
	candidate := "Pode enviar uma foto do problema agora?"
	alternatives := []string{"Agora me mande uma foto do local, por favor."}
	if got := Dedupe(candidate, recent, alternatives); got != candidate {
		t.Errorf("Dedupe = %q, want candidate when everything collides", got)
	}
}
