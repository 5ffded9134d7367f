package service

import "EdubotKing-Backend/internal/model"

const (
	QuizQuestionCount = 5
	QuizOptionCount   = 4
	minDocumentChars  = 50
)

const summarySystemPrompt = "Actúa como un profesor experto y conciso. Tu tarea es analizar el texto proporcionado y " +
	"generar un resumen detallado y exhaustivo en español de no más de 300 palabras. " +
	"El resumen debe capturar las ideas principales, los conceptos clave y cualquier conclusión importante del documento. " +
	"Asegúrate de que la respuesta sea un único bloque de texto sin títulos, subtítulos o formato Markdown adicional."

const summaryUserPrompt = "Genera un resumen detallado y exhaustivo del siguiente texto del documento:\n\n---\n"

const quizSystemPrompt = "Crea un quiz de 5 preguntas de opción múltiple basado exclusivamente en el resumen proporcionado. " +
	"Cada pregunta debe tener 4 opciones y una única respuesta correcta. " +
	"La respuesta final DEBE estar en formato JSON que se ajuste al esquema proporcionado."

const quizUserPrompt = "Genera un quiz de 5 preguntas basado en el siguiente resumen:\n\n---\n"

// Messages returned to the frontend.
const (
	msgDocumentTooShort   = "El PDF está vacío o no se pudo extraer suficiente texto legible."
	msgQuizInputRequired  = "Se requiere el texto del resumen para generar el quiz."
	msgAudioInputRequired = "Se requiere el texto del resumen para generar el audio."
	msgSummaryShape       = "Fallo la estructura de la respuesta de la IA al generar el resumen. Verifica los logs del servidor."
	msgQuizShape          = "Fallo la estructura JSON de la respuesta del quiz. Intenta de nuevo."
	msgAudioShape         = "Fallo la estructura de la respuesta de la IA al generar el audio."
)

// quizSchema asks Gemini for an array of question objects.
func quizSchema() *model.Schema {
	return &model.Schema{
		Type:        "ARRAY",
		Description: "Lista de 5 preguntas de opción múltiple con la respuesta correcta indicada.",
		Items: &model.Schema{
			Type: "OBJECT",
			Properties: map[string]*model.Schema{
				"question": {Type: "STRING", Description: "La pregunta del quiz."},
				"options": {
					Type:        "ARRAY",
					Items:       &model.Schema{Type: "STRING"},
					Description: "Lista de 4 opciones de respuesta para la pregunta.",
				},
				"answer": {Type: "STRING", Description: "La opción correcta (debe ser idéntica a una de las opciones)."},
			},
			Required: []string{"question", "options", "answer"},
		},
	}
}

func textContent(text string) model.Content {
	return model.Content{Parts: []model.Part{{Text: text}}}
}

func buildSummaryPayload(documentText string) *model.GenerateContentRequest {
	system := textContent(summarySystemPrompt)
	return &model.GenerateContentRequest{
		Contents:          []model.Content{textContent(summaryUserPrompt + documentText)},
		SystemInstruction: &system,
	}
}

func buildQuizPayload(summary string) *model.GenerateContentRequest {
	system := textContent(quizSystemPrompt)
	return &model.GenerateContentRequest{
		Contents:          []model.Content{textContent(quizUserPrompt + summary)},
		SystemInstruction: &system,
		GenerationConfig: &model.GenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   quizSchema(),
		},
	}
}

func buildAudioPayload(summary, voice string) *model.GenerateContentRequest {
	return &model.GenerateContentRequest{
		Contents: []model.Content{textContent(summary)},
		GenerationConfig: &model.GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &model.SpeechConfig{
				VoiceConfig: model.VoiceConfig{
					PrebuiltVoiceConfig: model.PrebuiltVoiceConfig{VoiceName: voice},
				},
			},
		},
	}
}
