// Package seed loads the color palette and the global categories.
package seed

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tally/internal/category"
)

//go:embed default.yaml
var defaultFile []byte

type File struct {
	Colors     []Color    `yaml:"colors"`
	Categories []Category `yaml:"categories"`
}

type Color struct {
	Name string `yaml:"name"`
	Hex  string `yaml:"hex"`
}

type Category struct {
	Name       string  `yaml:"name"`
	Importance float64 `yaml:"importance"`
	Color      string  `yaml:"color"`
}

// Default is the seed data compiled into the binary.
func Default() (File, error) {
	return Parse(defaultFile)
}

func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse seed: %w", err)
	}
	return f, f.validate()
}

func Read(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return Parse(data)
}

func (f File) validate() error {
	names := map[string]bool{}
	for _, c := range f.Colors {
		names[c.Name] = true
	}
	for _, c := range f.Categories {
		if c.Name == "" {
			return fmt.Errorf("seed category without name")
		}
		if c.Importance < 0 {
			return fmt.Errorf("seed category %q: negative importance", c.Name)
		}
		if c.Color != "" && !names[c.Color] {
			return fmt.Errorf("seed category %q: unknown color %q", c.Name, c.Color)
		}
	}
	return nil
}

type Result struct {
	Colors     int
	Categories int
}

// Apply inserts whatever is missing. Existing colors and global categories
// with the same name are left untouched, so Apply can run on every deploy.
func Apply(gdb *gorm.DB, f File) (Result, error) {
	var res Result
	err := gdb.Transaction(func(tx *gorm.DB) error {
		hex := map[string]string{}
		for _, c := range f.Colors {
			hex[c.Name] = c.Hex
			row := category.PaletteColor{Name: c.Name, Hex: c.Hex}
			r := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).Create(&row)
			if r.Error != nil {
				return r.Error
			}
			res.Colors += int(r.RowsAffected)
		}

		var existing []string
		if err := tx.Model(&category.Category{}).Where("user_id IS NULL").Pluck("name", &existing).Error; err != nil {
			return err
		}
		have := map[string]bool{}
		for _, n := range existing {
			have[n] = true
		}
		for _, c := range f.Categories {
			if have[c.Name] {
				continue
			}
			importance := c.Importance
			if importance == 0 {
				importance = category.DefaultImportance
			}
			color := category.DefaultColor
			if c.Color != "" {
				color = category.Color{Name: c.Color, Hex: hex[c.Color]}
			}
			row := category.Category{Scope: category.ScopeGlobal, Name: c.Name, Importance: importance, Color: color}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			res.Categories++
		}
		return nil
	})
	return res, err
}
