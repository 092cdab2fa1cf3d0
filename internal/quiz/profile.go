package quiz

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile holds the grading and presentation defaults written into every
// question element.
type Profile struct {
	DefaultGrade            string `yaml:"default_grade"`
	Penalty                 string `yaml:"penalty"`
	Hidden                  string `yaml:"hidden"`
	Single                  bool   `yaml:"single"`
	ShuffleAnswers          bool   `yaml:"shuffle_answers"`
	AnswerNumbering         string `yaml:"answer_numbering"`
	ShowStandardInstruction string `yaml:"show_standard_instruction"`

	CorrectFeedback          string `yaml:"correct_feedback"`
	PartiallyCorrectFeedback string `yaml:"partially_correct_feedback"`
	IncorrectFeedback        string `yaml:"incorrect_feedback"`

	NameLength    int `yaml:"name_length"`
	RightFraction int `yaml:"right_fraction"`
	WrongFraction int `yaml:"wrong_fraction"`
}

// DefaultProfile returns the single-answer multichoice defaults.
func DefaultProfile() Profile {
	return Profile{
		DefaultGrade:            "1.000000",
		Penalty:                 "0.3333333",
		Hidden:                  "0",
		Single:                  true,
		ShuffleAnswers:          true,
		AnswerNumbering:         "abc",
		ShowStandardInstruction: "0",

		CorrectFeedback:          "Your answer is correct.",
		PartiallyCorrectFeedback: "Your answer is partially correct.",
		IncorrectFeedback:        "Your answer is incorrect.",

		NameLength:    35,
		RightFraction: 100,
		WrongFraction: 0,
	}
}

// LoadProfile reads a YAML profile. Keys absent from the file keep their
// default values.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

func (p Profile) Validate() error {
	if p.NameLength <= 0 {
		return fmt.Errorf("name_length must be positive, got %d", p.NameLength)
	}
	if p.RightFraction < 0 || p.RightFraction > 100 {
		return fmt.Errorf("right_fraction must be within 0..100, got %d", p.RightFraction)
	}
	if p.WrongFraction < -100 || p.WrongFraction > 100 {
		return fmt.Errorf("wrong_fraction must be within -100..100, got %d", p.WrongFraction)
	}
	return nil
}
