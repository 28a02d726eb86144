package extract

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassifierMatchesCategories(t *testing.T) {
	classifier, err := NewClassifier("")
	if err != nil {
		t.Fatalf("load embedded table: %v", err)
	}

	tests := []struct {
		text string
		want string
	}{
		{"tem um buraco enorme no asfalto da rua", "Buraco na via"},
		{"o poste esta com a lampada queimada", "Iluminacao publica"},
		{"bueiro entupido e alagamento na esquina", "Drenagem"},
		{"muito lixo e entulho na calcada", "Limpeza urbana"},
		{"galho de arvore caido precisa de poda", "Poda de arvore"},
		{"semaforo quebrado no cruzamento", "Sinalizacao"},
	}
	for _, tt := range tests {
		result := classifier.Classify(tt.text)
		if result.Category != tt.want {
			t.Errorf("Classify(%q).Category = %q, want %q", tt.text, result.Category, tt.want)
		}
		if result.Description != tt.text {
			t.Errorf("Classify(%q).Description = %q, want the text itself", tt.text, result.Description)
		}
		if result.Confidence != 0.3 {
			t.Errorf("fallback confidence = %v, want 0.3", result.Confidence)
		}
	}
}

func TestClassifierUnmatchedTextIsOther(t *testing.T) {
	classifier, err := NewClassifier("")
	if err != nil {
		t.Fatalf("load embedded table: %v", err)
	}
	result := classifier.Classify("bom dia, tudo bem com voce?")
	if result.Category != CategoryOther {
		t.Errorf("Category = %q, want %q", result.Category, CategoryOther)
	}
	if result.Description != "" {
		t.Errorf("unmatched text must not become a description, got %q", result.Description)
	}
}

func TestClassifierIsDeterministic(t *testing.T) {
	classifier, err := NewClassifier("")
	if err != nil {
		t.Fatalf("load embedded table: %v", err)
	}
	text := "buraco com lixo dentro"
	first := classifier.Classify(text)
	for i := 0; i < 50; i++ {
		if got := classifier.Classify(text); got != first {
			t.Fatalf("classification changed between runs: %+v vs %+v", got, first)
		}
	}
}

func TestClassifierCustomTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.yaml")
	table := "categories:\n  Transporte:\n    - onibus\n    - parada\n"
	if err := os.WriteFile(path, []byte(table), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}
	classifier, err := NewClassifier(path)
	if err != nil {
		t.Fatalf("load custom table: %v", err)
	}
	if got := classifier.Classify("a parada de onibus quebrou").Category; got != "Transporte" {
		t.Errorf("Category = %q, want Transporte", got)
	}
}

func TestClassifierMissingTableFile(t *testing.T) {
	if _, err := NewClassifier("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error for missing table file")
	}
}
