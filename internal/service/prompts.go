package service

import (
	"fmt"
	"strings"

	"receipt-service/internal/models"
)

const extractionSystemInstruction = `You are an AI language model tasked with extracting key information from a receipt.
If the image given is not a receipt, please return Invalid category and ignore all other fields. If the values are not present, please return 'None' for them.
Always use simple formats for numbers - use whole integers for quantities (like 1, 2, 3) and avoid long decimal values.
IMPORTANT: Each item in the itemized_list MUST include item_name, item_cost, and item_quantity. For item_cost, if the exact price is not visible, make a reasonable estimate based on the total cost.`

func extractionPrompt() string {
	names := make([]string, 0, len(models.AllCategories))
	for _, c := range models.AllCategories {
		names = append(names, string(c))
	}

	return fmt.Sprintf(`Given an image of a receipt, extract information from the receipt. If the image is not a receipt, please return Invalid category and ignore all other fields.
If the values are not present, please return 'None' for them.

merchant_name: The name of the merchant
total_cost: The total cost of the receipt
category: The category of spending (%s). Only return Invalid if the image is not a receipt.
date: The date of the receipt
itemized_list: A list of line items, each containing:
    item_name: The name of the item
    item_cost: REQUIRED - The cost of the item (e.g., '10.99'). If the price is not explicitly stated, estimate based on the item and total cost.
    item_quantity: The quantity of the item as a whole number integer (like 1, 2, 3)

Respond with a single JSON object using exactly these keys and nothing else.`, strings.Join(names, ", "))
}

func extractionFeedback(err error) string {
	return fmt.Sprintf("Parsing failed with error: %v. Please check the JSON format and try again.", err)
}

const reviewSystemInstruction = `You are a personal finance assistant. You read a user's receipts and give short, concrete advice on how they can spend less.
Answer with a JSON object {"status": boolean, "insights": string}. Set status to false only if you cannot produce useful insights from the receipts given.`

const reviewPrompt = `Review the receipts below and write two or three sentences of practical insights about the spending pattern, pointing at specific merchants, categories or items where money could be saved.
If the user asked a question, answer it using only the receipts.`

// reviewErrorResponse is sent when the model reports status=false.
const reviewErrorResponse = `You returned status false. Look at the receipts again and produce insights about the spending pattern, even if they are brief. Return status true with your insights.`

const chatSystemInstruction = `You are a helpful assistant that answers questions about the user's spending using their receipts. Be concise and use the figures you are given.`

// FallbackInsights is returned by the review endpoint when no provider answers.
const FallbackInsights = `Track your spending diligently to identify unnecessary expenses, prioritize needs over wants, and create a realistic budget.
Cut costs by meal planning, reducing utility usage, and canceling unused subscriptions.
Pay down high-interest debt aggressively while exploring cheaper alternatives for insurance, transportation, and entertainment.`

// ChatApology is returned by the chat endpoint when no provider answers.
const ChatApology = "Sorry, I encountered an error trying to process your request with the AI models."

// HistoryEntry is one prior turn of the chat conversation.
type HistoryEntry struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

func buildChatPrompt(history []HistoryEntry, retrieved, message string) string {
	lines := make([]string, 0, len(history))
	for _, h := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(h.Sender), h.Content))
	}

	return fmt.Sprintf(`Conversation History:
%s

Relevant Context from Receipts:
%s

Current User Query:
USER: %s

Analyze the provided conversation history and receipt context to answer the user's query.
- If an AUTHORITATIVE TOTALS section is present, use those figures verbatim for any total you report. Do not recompute them.
- If the query asks for insights on a specific category (like 'food', 'transport', etc.), summarize spending patterns or list relevant items/merchants found within THAT category in the provided context.
- For general insight queries, summarize the key spending areas reflected in the context.
- If the context is insufficient to fully answer, clearly state what information you can provide based on the limited context and mention that more data might be needed for a complete picture.
- Base your answer ONLY on the provided history and context. Do not make up information.
AI:`, strings.Join(lines, "\n"), retrieved, message)
}
