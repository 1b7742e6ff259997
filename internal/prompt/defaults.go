package prompt

// builtinTemplates are the fallback templates per type. Substitution sites
// use $name; anything not supplied at render time stays literal.
var builtinTemplates = map[string]string{
	TypeDocumentQuiz: `You are an expert educational quiz author. Generate high-quality quiz questions from the study material below.

Study material:
$content

Generate $question_count questions of the following types: $question_types.
Difficulty level: $difficulty (easy, medium, hard, master)

Supported question types:
- MC: single choice - 4 options (A,B,C,D), exactly 1 correct answer
- MCM: multiple choice - 4-6 options, 2 or more correct answers
- TF: true/false - decide whether a statement is true or false
- FB: fill in the blank - a word, phrase or sentence
- SA: short answer - answered in the student's own words, graded against key points

Requirements:
1. Every question must be grounded directly in the study material
2. Questions must be unambiguous and answers accurate
3. Provide a detailed explanation for every question
4. Explanations should quote the relevant source passage
5. Return the questions in this JSON format:

` + "```json" + `
[
{
    "content": "question text",
    "type": "MC",
    "options": ["option A", "option B", "option C", "option D"],
    "correct_answer": "A",
    "explanation": "detailed explanation",
    "source_passage": "relevant passage from the material",
    "knowledge_points": ["concept"],
    "difficulty": "medium"
}
]
` + "```" + `

Answer format by type: single choice a letter like "A"; multiple choice an array like ["A", "C"]; true/false "true" or "false"; fill in the blank the answer text; short answer an array of scoring key points.

Return only the JSON, no other text.`,

	TypeTopicQuiz: `You are an expert educational quiz author. Generate high-quality quiz questions for the topic and constraints below.

Topic: $topic

Generate $question_count questions of the following types: $question_types.
Difficulty level: $difficulty (easy, medium, hard, master)

Supported question types:
- MC: single choice - 4 options (A,B,C,D), exactly 1 correct answer
- MCM: multiple choice - 4-6 options, 2 or more correct answers
- TF: true/false - decide whether a statement is true or false
- FB: fill in the blank - a word, phrase or sentence
- SA: short answer - answered in the student's own words, graded against key points

Additional constraints:
$constraints

Requirements:
1. Questions must match the topic and honor the constraints
2. Questions must be unambiguous and answers accurate
3. Provide a detailed explanation for every question
4. Return the questions in this JSON format:

` + "```json" + `
[
{
    "content": "question text",
    "type": "MC",
    "options": ["option A", "option B", "option C", "option D"],
    "correct_answer": "A",
    "explanation": "detailed explanation",
    "knowledge_points": ["concept"],
    "difficulty": "medium"
}
]
` + "```" + `

Answer format by type: single choice a letter like "A"; multiple choice an array like ["A", "C"]; true/false "true" or "false"; fill in the blank the answer text; short answer an array of scoring key points.

Return only the JSON, no other text.`,

	TypeGroundedChat: `You are a study assistant. Answer the user's question using the reference material below.

Reference material:
$reference_text

User question: $query

Give a clear, accurate answer that directly addresses the question. If the reference material does not contain enough information, say so honestly and offer general guidance instead.

When answering:
1. Use plain, concise language
2. Use bullet points when it helps
3. Cite the reference material to support your answer
4. Never invent facts that are not in the reference material

Answer:`,

	TypeExplanation: `You are an education expert. A student answered the question below incorrectly. Explain why their answer is wrong and why the correct answer is right.

Study material:
$content

Question: $question

The student's wrong answer: $wrong_answer
The correct answer: $correct_answer

Provide a detailed explanation covering:
1. Why the student's answer is wrong
2. Why the correct answer is right
3. The underlying concepts
4. Direct quotes from the study material where relevant
5. An analogy or example if it helps understanding

Be encouraging rather than critical; the goal is genuine understanding, not just the right letter.`,

	TypeDocumentSummary: `Write a comprehensive, accurate summary of the document below. Capture the main arguments, key concepts and important conclusions.

Document:
$content

Length requirement:
$length_requirement

Format requirement:
$outline_requirement

Requirements:
1. Preserve the document's core information and key points
2. Use clear, professional language
3. Stay objective; add nothing that is not in the source
4. Structure the summary with headings or numbered lists where useful
5. Keep technical terms, briefly explained
6. Highlight important data or findings

Summary:`,

	TypeQuizConstraints: `You are a quiz planning assistant. Extract the quiz topic and concrete constraints from the user's request.

Return exactly this JSON shape:
{
    "topic": "topic name",
    "constraints": "detailed constraint description",
    "suggested_question_types": ["MC", "TF"],
    "suggested_difficulty": "easy|medium|hard|master"
}

Return only the JSON, no other text.

User request: $query`,
}

// Length guidance strings for summary generation, keyed by length class.
var summaryLengthGuides = map[string]string{
	"short":  "Write a brief summary, roughly 5-10% of the source length, covering only the most essential points.",
	"medium": "Write a medium-length summary, roughly 10-15% of the source length, covering the main arguments and key details.",
	"long":   "Write a detailed summary, roughly 15-25% of the source length, covering main arguments, key evidence and important details while staying concise.",
}

// SummaryLengthGuide maps a length class to its guidance string. Unknown
// classes fall back to medium.
func SummaryLengthGuide(class string) string {
	if guide, ok := summaryLengthGuides[class]; ok {
		return guide
	}
	return summaryLengthGuides["medium"]
}

// OutlineRequirement returns the outline guidance for summaries.
func OutlineRequirement(includeOutline bool) string {
	if includeOutline {
		return "Start with a structured outline of the document's main sections and key points, then give the detailed summary."
	}
	return "No outline needed; give the summary directly."
}
