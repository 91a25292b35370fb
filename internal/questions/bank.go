package questions

import (
	"github.com/samber/lo"

	"github.com/abhisek/checkin/internal/domain"
)

// Topic names used by the static banks.
const (
	TopicMath      = "math"
	TopicLanguages = "languages"
	TopicPhonetics = "phonetics"
	TopicGeneral   = "general"
)

// BankItem is one static multiple-choice question.
type BankItem struct {
	Text    string
	Options []string
	Answer  string
}

type bank map[string][]BankItem

// topicAliases maps learning-focus labels onto bank topics. Anything not
// listed seeds from the general bank.
var topicAliases = map[string]string{
	TopicMath:      TopicMath,
	TopicLanguages: TopicLanguages,
	TopicPhonetics: TopicPhonetics,
	TopicGeneral:   TopicGeneral,
	"reading":      TopicGeneral,
	"science":      TopicGeneral,
}

// defaultSeedTopics is used when a child has no learning focus.
var defaultSeedTopics = []string{TopicGeneral, TopicMath}

// SeedTopics resolves a learning focus into the distinct bank topics that
// Seed will insert, in first-seen order.
func SeedTopics(focus []string) []string {
	if len(focus) == 0 {
		return defaultSeedTopics
	}
	return lo.Uniq(lo.Map(focus, func(t string, _ int) string {
		if alias, ok := topicAliases[t]; ok {
			return alias
		}
		return TopicGeneral
	}))
}

// ageBank returns the seed bank for an age group, falling back to 9-12.
func ageBank(g domain.AgeGroup) bank {
	if b, ok := seedBanks[g]; ok {
		return b
	}
	return seedBanks[domain.AgeGroup9to12]
}

// itemsFor returns the bank entries for topic, or the general entries when
// the bank has no such topic.
func (b bank) itemsFor(topic string) []BankItem {
	if items, ok := b[topic]; ok {
		return items
	}
	return b[TopicGeneral]
}

func mc(text, answer string, options ...string) BankItem {
	return BankItem{Text: text, Options: options, Answer: answer}
}

var seedBanks = map[domain.AgeGroup]bank{
	domain.AgeGroup6to8: {
		TopicMath: {
			mc("What is 2 + 3?", "5", "4", "5", "6", "7"),
			mc("What is 4 + 4?", "8", "6", "7", "8", "9"),
			mc("What is 3 + 4?", "7", "5", "6", "7", "8"),
			mc("What is 5 + 2?", "7", "6", "7", "8", "9"),
			mc("What is 6 + 3?", "9", "8", "9", "10", "11"),
			mc("What is 10 - 4?", "6", "4", "5", "6", "7"),
			mc("What is 8 - 3?", "5", "4", "5", "6", "7"),
			mc("What is 2 x 3?", "6", "4", "5", "6", "7"),
			mc("What is 4 x 2?", "8", "6", "7", "8", "9"),
			mc("What is 6 / 2?", "3", "2", "3", "4", "5"),
		},
		TopicPhonetics: {
			mc(`What sound does the letter "B" make?`, "/b/", "/b/", "/d/", "/p/", "/t/"),
			mc(`Which word starts with a "ch" sound?`, "Chair", "Ship", "Chair", "Think", "Jump"),
			mc(`How many syllables in "elephant"?`, "3", "2", "3", "4", "1"),
			mc(`Which word rhymes with "cat"?`, "Bat", "Dog", "Bat", "Fish", "Run"),
			mc(`What letter does "apple" start with?`, "A", "B", "A", "C", "D"),
		},
		TopicGeneral: {
			mc("How many days are in a week?", "7", "5", "6", "7", "8"),
			mc("What planet do we live on?", "Earth", "Mars", "Earth", "Jupiter", "Venus"),
			mc("How many legs does a spider have?", "8", "6", "8", "10", "4"),
			mc("What is the opposite of hot?", "Cold", "Warm", "Cold", "Cool", "Mild"),
			mc("What color is the sky on a sunny day?", "Blue", "Green", "Blue", "Red", "Yellow"),
			mc("How many months are in a year?", "12", "10", "11", "12", "13"),
		},
	},
	domain.AgeGroup9to12: {
		TopicMath: {
			mc("What is 7 + 5?", "12", "10", "11", "12", "13"),
			mc("What is 3 x 4?", "12", "7", "10", "12", "14"),
			mc("What is 15 - 8?", "7", "5", "6", "7", "8"),
			mc("What is 20 / 4?", "5", "4", "5", "6", "8"),
			mc("What is 9 + 6?", "15", "13", "14", "15", "16"),
			mc("What is 12 x 8?", "96", "86", "96", "106", "84"),
			mc("What is 144 / 12?", "12", "10", "11", "12", "13"),
			mc("What is 7 x 7?", "49", "42", "49", "56", "63"),
			mc("What is 100 - 37?", "63", "61", "62", "63", "64"),
			mc("What is 15% of 80?", "12", "10", "12", "14", "16"),
		},
		TopicLanguages: {
			mc(`What does "Bonjour" mean?`, "Hello", "Goodbye", "Hello", "Thank you", "Please"),
			mc(`How do you say "cat" in Spanish?`, "Gato", "Perro", "Gato", "Pájaro", "Pez"),
			mc(`What is "Thank you" in Japanese?`, "Arigatou", "Konnichiwa", "Sayonara", "Arigatou", "Sumimasen"),
			mc(`What does "Hola" mean in Spanish?`, "Hello", "Goodbye", "Hello", "Please", "Thanks"),
			mc(`How do you say "water" in French?`, "Eau", "Lait", "Eau", "Pain", "Fromage"),
		},
		TopicGeneral: {
			mc("What is the capital of France?", "Paris", "London", "Berlin", "Paris", "Madrid"),
			mc("What is the largest ocean?", "Pacific", "Atlantic", "Indian", "Pacific", "Arctic"),
			mc("How many continents are there?", "7", "5", "6", "7", "8"),
			mc("What year did World War II end?", "1945", "1943", "1944", "1945", "1946"),
			mc("What is the chemical symbol for gold?", "Au", "Go", "Gd", "Au", "Ag"),
		},
	},
	domain.AgeGroup13to15: {
		TopicMath: {
			mc("Simplify: 3x + 2x", "5x", "5x", "6x", "5x²", "6"),
			mc("What is 2³?", "8", "4", "6", "8", "10"),
			mc("Solve: 2x + 5 = 15", "x = 5", "x = 3", "x = 5", "x = 7", "x = 10"),
			mc("What is √144?", "12", "10", "11", "12", "13"),
			mc("What is 15% of 200?", "30", "25", "30", "35", "40"),
			mc("Factor: x² - 9", "(x-3)(x+3)", "(x-3)(x+3)", "(x-9)(x+1)", "(x-3)²", "(x+3)²"),
			mc("What is (-3) x (-4)?", "12", "-12", "12", "-7", "7"),
		},
		TopicLanguages: {
			mc(`What is the past tense of "go" in English?`, "Went", "Goed", "Went", "Gone", "Going"),
			mc(`Which language uses "kanji" characters?`, "Japanese", "Chinese", "Korean", "Japanese", "Vietnamese"),
			mc(`What does "carpe diem" mean in Latin?`, "Seize the day", "Peace be with you", "Seize the day", "Hello", "Goodbye"),
		},
		TopicGeneral: {
			mc("What is the speed of light in vacuum (approx)?", "300,000 km/s", "300,000 km/s", "150,000 km/s", "500,000 km/s", "100,000 km/s"),
			mc(`Who wrote "Romeo and Juliet"?`, "Shakespeare", "Dickens", "Shakespeare", "Austen", "Twain"),
			mc("What is the powerhouse of the cell?", "Mitochondria", "Nucleus", "Ribosome", "Mitochondria", "Golgi"),
		},
	},
}

// fallbackBank backs questions synthesized when no stock is claimable.
var fallbackBank = bank{
	TopicMath: {
		mc("What is 7 + 5?", "12", "10", "11", "12", "13"),
		mc("What is 3 x 4?", "12", "7", "10", "12", "14"),
		mc("What is 15 - 8?", "7", "5", "6", "7", "8"),
		mc("What is 20 / 4?", "5", "4", "5", "6", "8"),
		mc("What is 9 + 6?", "15", "13", "14", "15", "16"),
	},
	TopicLanguages: {
		mc(`What does "Bonjour" mean?`, "Hello", "Goodbye", "Hello", "Thank you", "Please"),
		mc(`How do you say "cat" in Spanish?`, "Gato", "Perro", "Gato", "Pájaro", "Pez"),
		mc(`What is "Thank you" in Japanese?`, "Arigatou", "Konnichiwa", "Sayonara", "Arigatou", "Sumimasen"),
	},
	TopicPhonetics: {
		mc(`What sound does the letter "B" make?`, "/b/", "/b/", "/d/", "/p/", "/t/"),
		mc(`Which word starts with a "ch" sound?`, "Chair", "Ship", "Chair", "Think", "Jump"),
		mc(`How many syllables in "elephant"?`, "3", "2", "3", "4", "1"),
	},
	TopicGeneral: {
		mc("What is the capital of France?", "Paris", "London", "Berlin", "Paris", "Madrid"),
		mc("How many days are in a week?", "7", "5", "6", "7", "8"),
		mc("What planet do we live on?", "Earth", "Mars", "Earth", "Jupiter", "Venus"),
		mc("How many legs does a spider have?", "8", "6", "8", "10", "4"),
		mc("What is the opposite of hot?", "Cold", "Warm", "Cold", "Cool", "Mild"),
	},
}
