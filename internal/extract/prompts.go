package extract

import (
	"fmt"
	"strings"
)

const systemPrompt = `Voce e o assistente de zeladoria urbana de uma prefeitura.
O cidadao relata problemas de infraestrutura (buracos, iluminacao, drenagem,
lixo, poda) pelo WhatsApp. Extraia do conteudo os campos abaixo e responda
APENAS com um objeto JSON:
{
  "description": "resumo objetivo do problema relatado, vazio se nao houver",
  "category": "uma de: Buraco na via, Iluminacao publica, Drenagem, Limpeza urbana, Poda de arvore, Sinalizacao, Outros",
  "address": "endereco ou referencia de local citado, vazio se nao houver",
  "neighborhood": "bairro citado, vazio se nao houver",
  "urgency": "baixa, media ou alta",
  "transcript": "transcricao literal quando o conteudo for audio, senao vazio",
  "suggested_reply": "resposta curta e cordial em portugues pedindo o proximo dado que falta"
}
Nunca invente endereco ou descricao que o cidadao nao informou.`

func userPrompt(content, contextSummary string) string {
	var b strings.Builder
	if contextSummary != "" {
		fmt.Fprintf(&b, "Contexto da conversa ate aqui:\n%s\n\n", contextSummary)
	}
	fmt.Fprintf(&b, "Mensagem do cidadao:\n%s", content)
	return b.String()
}

const imageInstruction = "A mensagem e uma foto enviada pelo cidadao. Descreva o problema visivel nela."
const videoInstruction = "A mensagem e um video enviado pelo cidadao. Descreva o problema visivel no quadro."
const audioInstruction = "A mensagem e um audio enviado pelo cidadao. Transcreva e extraia os campos."

// parseResult pulls the JSON object out of a raw model reply, tolerating
// code fences and leading prose.
func parseResult(raw string) (Result, error) {
	cleaned := stripCodeFences(raw)
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return Result{}, fmt.Errorf("no JSON object in model reply")
	}
	return decodeResult(cleaned[start : end+1])
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
