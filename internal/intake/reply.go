package intake

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/zeladoria/zela/internal/session"
)

// situation keys the reply variant pools. Variants exist so the repetition
// guard has alternate phrasings to fall back to.
type situation string

const (
	situationGreeting       situation = "greeting"
	situationMenu           situation = "menu"
	situationAskDescription situation = "ask_description"
	situationAskLocation    situation = "ask_location"
	situationAskPhoto       situation = "ask_photo"
	situationConfirmCancel  situation = "confirm_cancel"
	situationCreateFailed   situation = "create_failed"
	situationCreated        situation = "created"
	situationUnsupported    situation = "unsupported"
	situationIdleWarning    situation = "idle_warning"
	situationAskProtocol    situation = "ask_protocol"
	situationReconfirm      situation = "reconfirm"
	situationRestart        situation = "restart"
	situationPhotoFailed    situation = "photo_failed"
)

const (
	statusReplyFormat     = "O pedido %s esta com status: %s."
	protocolNotFoundReply = "Nao encontrei nenhum pedido com esse protocolo. Confira o numero e tente de novo."
	consultFailedReply    = "Nao consegui consultar o pedido agora. Tente novamente em alguns minutos."
)

var replyVariants = map[situation][]string{
	situationGreeting: {
		"Ola! Sou o assistente de zeladoria da prefeitura.",
		"Oi! Aqui e o canal de zeladoria da prefeitura.",
	},
	situationMenu: {
		"Me conte qual problema voce quer relatar: buraco na via, iluminacao, drenagem, lixo, poda ou outro. Para acompanhar um pedido, envie o numero de protocolo.",
		"Pode descrever o problema que voce encontrou na cidade. Se preferir consultar um pedido existente, mande o numero de protocolo.",
	},
	situationAskDescription: {
		"Me descreva o problema, por favor. O que esta acontecendo?",
		"Falta so a descricao: o que exatamente esta errado no local?",
	},
	situationAskLocation: {
		"Onde fica o problema? Envie o endereco ou a localizacao pelo WhatsApp.",
		"Preciso do local: mande o endereco ou compartilhe a localizacao.",
	},
	situationAskPhoto: {
		"Pode enviar uma foto do problema? Ela ajuda a equipe a se preparar.",
		"Agora me mande uma foto do local, por favor.",
	},
	situationConfirmCancel: {
		"Tudo bem, atendimento cancelado. Quando precisar, e so chamar de novo.",
		"Cancelado! Se mudar de ideia, me chame novamente.",
	},
	situationCreateFailed: {
		"Nao consegui registrar seu pedido agora, mas guardei tudo o que voce enviou. Responda SIM para eu tentar de novo.",
		"Tive um problema ao registrar o pedido. Seus dados estao salvos; responda SIM que eu tento novamente.",
	},
	situationCreated: {
		"Pedido registrado! Seu protocolo e %s. Use esse numero para acompanhar o andamento.",
		"Pronto, registrei seu pedido. Protocolo: %s. Guarde-o para consultas.",
	},
	situationUnsupported: {
		"Ainda nao consigo processar esse tipo de mensagem. Pode enviar texto, audio, foto, video ou localizacao?",
		"Esse formato eu nao entendo. Me mande texto, audio, foto, video ou a localizacao, por favor.",
	},
	situationIdleWarning: {
		"Ainda esta ai? Seu atendimento sera reiniciado se nao houver resposta.",
		"Continua comigo? Sem resposta, vou reiniciar o atendimento.",
	},
	situationAskProtocol: {
		"Claro! Me envie o numero de protocolo do pedido que voce quer consultar.",
		"Posso consultar sim. Qual e o numero de protocolo?",
	},
	situationReconfirm: {
		"Nao entendi. Responda SIM para registrar o pedido ou NAO para recomecar.",
		"Ficou em duvida? Mande SIM para confirmar o registro ou NAO para refazer.",
	},
	situationPhotoFailed: {
		"Nao consegui receber sua foto. Pode enviar de novo?",
		"A foto nao chegou direito por aqui. Tenta mandar outra vez?",
	},
	situationRestart: {
		"Sem problema, vamos recomecar. Me conte o problema desde o inicio.",
		"Certo, descartei os dados. Pode descrever o problema novamente.",
	},
}

// pickVariant deterministically selects a phrasing from the pool. The seed
// is derived from the sender and turn counter so tests are reproducible and
// consecutive turns still vary.
func pickVariant(s situation, seed uint64) string {
	pool := replyVariants[s]
	if len(pool) == 0 {
		return ""
	}
	return pool[seed%uint64(len(pool))]
}

// createdAlternatives formats the created-reply pool with the protocol, so
// the repetition guard only ever substitutes a ready-to-send phrasing and
// the protocol number survives the swap.
func createdAlternatives(protocol string) []string {
	pool := replyVariants[situationCreated]
	out := make([]string, len(pool))
	for i, variant := range pool {
		out[i] = fmt.Sprintf(variant, protocol)
	}
	return out
}

func variantSeed(senderID string, turn int) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(senderID))
	return h.Sum64() + uint64(turn)
}

// missingSlot returns the single next item to ask for. Priority is fixed:
// photo, then location, then description.
func missingSlot(slots session.Slots) situation {
	switch {
	case len(slots.Photos) == 0:
		return situationAskPhoto
	case !slots.HasLocation():
		return situationAskLocation
	default:
		return situationAskDescription
	}
}

// nextStage derives the nominal collection stage from the slots.
func nextStage(slots session.Slots) session.Stage {
	switch {
	case strings.TrimSpace(slots.Description) == "":
		return session.StageCollectingDescription
	case !slots.HasLocation():
		return session.StageCollectingLocation
	default:
		return session.StageCollectingPhoto
	}
}

var (
	cancelWords  = []string{"cancelar", "cancela", "desistir", "desisto", "parar", "sair"}
	affirmWords  = []string{"sim", "s", "ok", "confirmo", "confirmar", "pode", "isso", "claro", "quero"}
	negateWords  = []string{"nao", "não", "n", "errado", "refazer", "recomecar"}
	demandWords  = []string{
		"buraco", "cratera", "asfalto", "poste", "lampada", "luz", "iluminacao",
		"alagamento", "bueiro", "esgoto", "enchente", "lixo", "entulho", "mato",
		"arvore", "galho", "poda", "placa", "semaforo", "calcada", "vazamento",
		"problema", "reclamar", "reclamacao", "denuncia", "denunciar", "quebrado",
		"quebrada", "caido", "caida",
	}
	consultWords = []string{"protocolo", "status", "andamento", "consultar", "consulta", "acompanhar"}

	protocolPattern = regexp.MustCompile(`(?i)\b(?:[A-Z]{2,5}-?)?\d{4}-?\d{2,}\b`)
)

func isCancelCommand(text string) bool {
	return matchesWord(text, cancelWords)
}

func isAffirmative(text string) bool {
	return matchesWord(text, affirmWords)
}

func isNegative(text string) bool {
	return matchesWord(text, negateWords)
}

// hasDemandSignal reports whether free text looks like the start of a
// complaint rather than small talk.
func hasDemandSignal(text string) bool {
	normalized := normalizeText(text)
	for _, word := range demandWords {
		if strings.Contains(normalized, word) {
			return true
		}
	}
	return false
}

func isStatusQuery(text string) bool {
	normalized := normalizeText(text)
	for _, word := range consultWords {
		if strings.Contains(normalized, word) {
			return true
		}
	}
	return false
}

// extractProtocol returns the first protocol-shaped token in the text.
func extractProtocol(text string) string {
	return strings.TrimSpace(protocolPattern.FindString(text))
}

func matchesWord(text string, words []string) bool {
	normalized := normalizeText(text)
	for _, word := range words {
		if normalized == word {
			return true
		}
	}
	// Short commands also count when they lead the message ("cancelar tudo").
	fields := strings.Fields(normalized)
	if len(fields) > 0 {
		for _, word := range words {
			if fields[0] == word {
				return true
			}
		}
	}
	return false
}

func normalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
