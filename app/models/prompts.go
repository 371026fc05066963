package models

import "fmt"

func answerPrompt(question, contextText string) []Message {
	system := "You are a helpful assistant that answers questions based on school textbook content. " +
		"Use the provided excerpts to answer the question. If the information is not available " +
		"in the provided context, say so clearly. Cite the source (class, subject, book, page number) " +
		"when appropriate."

	user := fmt.Sprintf("Context from the books:\n%s\n\nQuestion: %s\n\n"+
		"Please provide a clear, accurate answer based on the excerpts above.", contextText, question)

	return []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}
