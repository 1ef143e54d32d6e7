package services

import (
	"strings"

	"campus-rag/internal/models"
)

// NoInformationAnswer is what the assistant says when it cannot ground an answer
const NoInformationAnswer = "Maaf, saya tidak menyajikan informasi ini. Silakan kunjungi uin-salatiga.ac.id untuk info lebih lengkap."

// SystemPrompt is the fixed assistant policy
const SystemPrompt = "Anda adalah UINSAGA-AI, asisten resmi UIN Salatiga. " +
	"Jawab hanya berdasarkan konteks yang diberikan. " +
	"Jika informasi tidak tersedia, katakan: '" + NoInformationAnswer + "' " +
	"Sesuaikan gaya bahasa: formal untuk dosen/karyawan, bahasa gen z untuk mahasiswa / calon mahasiswa. " +
	"Jawaban harus singkat (maks 2 kalimat), langsung ke inti, dan tidak berulang. " +
	"Jangan gunakan salam berbasis waktu dan gunakan sapaan yang sopan dan ramah hanya di awal percakapan. " +
	"Jika konteks internal tidak tersedia, Anda boleh memakai alat web_search untuk mencari informasi resmi terbaru."

const (
	historyHeader    = "=== RIWAYAT PERCAKAPAN ==="
	contextHeader    = "=== KONTEKS DOKUMEN ==="
	questionHeader   = "=== PERTANYAAN ==="
	noContextMarker  = "(Tidak ada konteks internal yang tersedia.)"
	closingDirective = "Jawablah dengan gaya asisten UIN Salatiga sesuai instruksi di atas."
)

// BuildPrompt assembles the system and user prompts. The user prompt holds,
// in order, the conversation history (omitted when blank), the document
// context or an explicit no-context marker, and the question.
func BuildPrompt(query, contextText, historyText string) (systemPrompt, userPrompt string) {
	var b strings.Builder

	if strings.TrimSpace(historyText) != "" {
		b.WriteString(historyHeader)
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(historyText))
		b.WriteString("\n\n")
	}

	b.WriteString(contextHeader)
	b.WriteString("\n")
	if strings.TrimSpace(contextText) != "" {
		b.WriteString(contextText)
	} else {
		b.WriteString(noContextMarker)
	}
	b.WriteString("\n\n")

	b.WriteString(questionHeader)
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\n\n")
	b.WriteString(closingDirective)

	return SystemPrompt, b.String()
}

// FormatHistory renders turns as "User:/AI:" pairs in the order given,
// which is oldest first as returned by ConversationHistory.Recent.
func FormatHistory(turns []models.ConversationTurn) string {
	if len(turns) == 0 {
		return ""
	}

	lines := make([]string, 0, len(turns)*2)
	for _, t := range turns {
		lines = append(lines, "User: "+t.UserMessage, "AI: "+t.AIMessage)
	}
	return strings.Join(lines, "\n")
}
