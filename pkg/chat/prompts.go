package chat

import (
	"fmt"
	"time"
)

const basePrompt = `You are a helpful assistant. Answer clearly and concisely.
If you do not know the answer, say so instead of guessing.`

const retrievalPrompt = `You are a helpful assistant with access to the user's document library.
Use the search_documents tool to look up relevant passages before answering
questions that may be covered by the library. Ground your answers in the
retrieved passages and mention which document they came from. If the library
has nothing relevant, say so and answer from general knowledge.`

const webSearchPrompt = `You are a helpful assistant with access to live web search.
Use the search_web tool for questions about current events or anything that
may have changed recently. Cite the sources you used by title.
Today's date is %s.`

const unifiedPrompt = `You are a helpful assistant with two tools: search_documents
looks up the user's private document library, search_web searches the live web.
Prefer the document library for questions about the user's own material and the
web for current events or public facts that may have changed. You may combine
both. Ground your answers in what the tools return and cite your sources.
Today's date is %s.`

// systemPrompt returns the instruction block for a capability set. The
// current date is injected whenever web search is available, so the
// model knows how fresh its sources can be.
func systemPrompt(caps Capabilities, now time.Time) string {
	date := now.Format("January 2, 2006")

	switch {
	case caps.Retrieval && caps.WebSearch:
		return fmt.Sprintf(unifiedPrompt, date)
	case caps.WebSearch:
		return fmt.Sprintf(webSearchPrompt, date)
	case caps.Retrieval:
		return retrievalPrompt
	default:
		return basePrompt
	}
}
