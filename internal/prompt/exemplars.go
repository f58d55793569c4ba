package prompt

// DefaultExemplars are the stock worked examples for few-shot mode. They
// demonstrate the expected reasoning shape and, critically, the closing
// "Answer: <letter>" line.
var DefaultExemplars = []Exemplar{
	{
		Question: "GMOs are created by ________",
		Choices: []string{
			"generating genomic DNA fragments with restriction endonucleases",
			"introducing recombinant DNA into an organism by any means",
			"overexpressing proteins in E. coli",
			"all of the above",
		},
		Reasoning: "GMOs are defined by the introduction of recombinant DNA (B). " +
			"Option A is a technique, not the definition. Option C is about protein " +
			"production. Option D is incorrect.",
		Answer: 1,
	},
	{
		Question: "Which scientific concept did Charles Darwin and Alfred Wallace independently discover?",
		Choices: []string{
			"mutation",
			"natural selection",
			"overbreeding",
			"sexual reproduction",
		},
		Reasoning: "Darwin and Wallace independently developed the theory of natural " +
			"selection (B). Mutation was discovered later; overbreeding and sexual " +
			"reproduction were already known concepts.",
		Answer: 1,
	},
	{
		Question: "Which situation would most likely lead to allopatric speciation?",
		Choices: []string{
			"Flood causes the formation of a new lake",
			"A storm causes several large trees to fall down",
			"A mutation causes a new trait to develop",
			"An injury",
		},
		Reasoning: "Allopatric speciation requires geographic isolation, and a new " +
			"lake forms a barrier between populations (A). A storm is temporary, a " +
			"mutation points at sympatric speciation, and an injury affects one " +
			"individual rather than a population.",
		Answer: 0,
	},
}
