package charactersheet

import (
	"fmt"
	"sort"
	"strings"
)

// standardArray is assigned to abilities in the class's priority order.
var standardArray = [6]int{15, 14, 13, 12, 10, 8}

// Ability names in sheet order.
const (
	STR = "str"
	DEX = "dex"
	CON = "con"
	INT = "int"
	WIS = "wis"
	CHA = "cha"
)

var abilityOrder = []string{STR, DEX, CON, INT, WIS, CHA}

type classRules struct {
	priority [6]string
	hitDie   int
	skills   []string
}

var classes = map[string]classRules{
	"barbarian": {[6]string{STR, CON, DEX, WIS, CHA, INT}, 12, []string{"Athletics", "Intimidation", "Survival"}},
	"bard":      {[6]string{CHA, DEX, CON, WIS, INT, STR}, 8, []string{"Performance", "Persuasion", "Deception", "Insight"}},
	"cleric":    {[6]string{WIS, CON, STR, CHA, INT, DEX}, 8, []string{"Insight", "Medicine", "Religion"}},
	"druid":     {[6]string{WIS, CON, DEX, INT, CHA, STR}, 8, []string{"Nature", "Animal Handling", "Survival"}},
	"fighter":   {[6]string{STR, CON, DEX, WIS, CHA, INT}, 10, []string{"Athletics", "Perception", "Intimidation"}},
	"monk":      {[6]string{DEX, WIS, CON, STR, INT, CHA}, 8, []string{"Acrobatics", "Insight", "Stealth"}},
	"paladin":   {[6]string{STR, CHA, CON, WIS, DEX, INT}, 10, []string{"Athletics", "Persuasion", "Religion"}},
	"ranger":    {[6]string{DEX, WIS, CON, STR, INT, CHA}, 10, []string{"Survival", "Stealth", "Perception", "Nature"}},
	"rogue":     {[6]string{DEX, INT, CON, CHA, WIS, STR}, 8, []string{"Stealth", "Sleight of Hand", "Deception", "Investigation"}},
	"sorcerer":  {[6]string{CHA, CON, DEX, WIS, INT, STR}, 6, []string{"Arcana", "Persuasion", "Insight"}},
	"warlock":   {[6]string{CHA, CON, DEX, WIS, INT, STR}, 8, []string{"Arcana", "Deception", "Intimidation"}},
	"wizard":    {[6]string{INT, CON, DEX, WIS, CHA, STR}, 6, []string{"Arcana", "History", "Investigation"}},
}

var racialBonus = map[string]map[string]int{
	"human":      {STR: 1, DEX: 1, CON: 1, INT: 1, WIS: 1, CHA: 1},
	"elf":        {DEX: 2},
	"dwarf":      {CON: 2},
	"halfling":   {DEX: 2},
	"gnome":      {INT: 2},
	"half-orc":   {STR: 2, CON: 1},
	"tiefling":   {CHA: 2, INT: 1},
	"dragonborn": {STR: 2, CHA: 1},
}

var skillAbility = map[string]string{
	"Acrobatics":      DEX,
	"Animal Handling": WIS,
	"Arcana":          INT,
	"Athletics":       STR,
	"Deception":       CHA,
	"History":         INT,
	"Insight":         WIS,
	"Intimidation":    CHA,
	"Investigation":   INT,
	"Medicine":        WIS,
	"Nature":          INT,
	"Perception":      WIS,
	"Performance":     CHA,
	"Persuasion":      CHA,
	"Religion":        INT,
	"Sleight of Hand": DEX,
	"Stealth":         DEX,
	"Survival":        WIS,
}

// improvementLevels grant +2 to ability scores.
var improvementLevels = []int{4, 8, 12, 16, 19}

const maxScore = 20

// Classes lists the supported class names.
func Classes() []string {
	names := make([]string, 0, len(classes))
	for name := range classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupClass(class string) (classRules, error) {
	rules, ok := classes[strings.ToLower(class)]
	if !ok {
		return classRules{}, fmt.Errorf("unknown class %q", class)
	}
	return rules, nil
}

// AbilityScores assigns the standard array by class priority, applies the
// racial bonus and spends ability score improvements up to level on the
// class's highest priorities. Scores never exceed 20.
func AbilityScores(class, race string, level int) (Abilities, error) {
	rules, err := lookupClass(class)
	if err != nil {
		return nil, err
	}

	scores := make(Abilities, len(abilityOrder))
	for i, ability := range rules.priority {
		scores[ability] = standardArray[i]
	}
	for ability, bonus := range racialBonus[strings.ToLower(race)] {
		scores[ability] = min(scores[ability]+bonus, maxScore)
	}

	for _, at := range improvementLevels {
		if level < at {
			break
		}
		points := 2
		for _, ability := range rules.priority {
			for points > 0 && scores[ability] < maxScore {
				scores[ability]++
				points--
			}
		}
	}
	return scores, nil
}

// Modifier returns the ability modifier for a score.
func Modifier(score int) int {
	return score/2 - 5
}

// ProficiencyBonus returns the proficiency bonus at level.
func ProficiencyBonus(level int) int {
	return 2 + (level-1)/4
}

// HitPoints returns maximum hit points: a full hit die at first level and
// the rounded-up average for every level after, plus the constitution
// modifier per level. Never less than one per level.
func HitPoints(class string, level, con int) (int, error) {
	rules, err := lookupClass(class)
	if err != nil {
		return 0, err
	}
	mod := Modifier(con)
	hp := rules.hitDie + mod
	hp += (level - 1) * (rules.hitDie/2 + 1 + mod)
	return max(hp, level), nil
}

// SkillList computes every skill bonus, marking the class skills proficient.
func SkillList(class string, level int, scores Abilities) ([]Skill, error) {
	rules, err := lookupClass(class)
	if err != nil {
		return nil, err
	}

	proficient := make(map[string]bool, len(rules.skills))
	for _, name := range rules.skills {
		proficient[name] = true
	}

	names := make([]string, 0, len(skillAbility))
	for name := range skillAbility {
		names = append(names, name)
	}
	sort.Strings(names)

	prof := ProficiencyBonus(level)
	skills := make([]Skill, 0, len(names))
	for _, name := range names {
		ability := skillAbility[name]
		bonus := Modifier(scores[ability])
		if proficient[name] {
			bonus += prof
		}
		skills = append(skills, Skill{
			Name:       name,
			Ability:    ability,
			Bonus:      bonus,
			Proficient: proficient[name],
		})
	}
	return skills, nil
}
