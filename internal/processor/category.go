// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package processor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ManuGH/epgsnoop/internal/log"
	"github.com/ManuGH/epgsnoop/internal/persistence/sqlite"
	"github.com/ManuGH/epgsnoop/internal/program"
)

// CategoryList maps the DVB content nibbles to a category type and name.
type CategoryList struct{}

var categoryTypes = map[string]string{
	"0": "tvshow", "1": "movie", "2": "tvshow", "3": "tvshow", "4": "sports",
	"5": "tvshow", "6": "tvshow", "7": "tvshow", "8": "tvshow", "9": "tvshow",
	"10": "tvshow", "11": "tvshow", "15": "tvshow",
}

var categoryNames = map[string]string{
	// Movies
	"1-0": "Drama", "1-1": "Thriller/Crime", "1-2": "Action/Adventure",
	"1-3": "Thriller/Crime", "1-4": "Comedy", "1-5": "Drama",
	"1-6": "Family/Romance", "1-7": "Classical/Religious/Historical",
	"1-8": "Adult", "1-9": "Religious", "1-10": "Thriller",
	"1-12": "News/Magazine", "1-13": "War", "1-14": "Western", "1-15": "Making of",

	// News/Documentary
	"2-0": "News/Current Affairs", "2-1": "News", "2-2": "Magazine",
	"2-3": "Documentary", "2-4": "Discussion/Interview", "2-15": "Sports",

	// General shows
	"3-0": "General Show", "3-1": "Game Show/Quiz/Contest", "3-2": "Variety Show",
	"3-3": "Talk Show", "3-4": "Reality", "3-5": "Reality/Stunt", "3-6": "Drama",
	"3-7": "Reality", "3-8": "Reality", "3-10": "Science Fiction", "3-11": "Crime",
	"3-12": "Sports - Wrestling/Fighting", "3-13": "Special Event", "3-14": "Adult",

	// Sports
	"4-0": "Sports", "4-1": "Sports - Special Event", "4-2": "Sports - Golf",
	"4-3": "Sports - Soccer", "4-4": "Sports - Tennis/Squash", "4-5": "Team Sports",
	"4-6": "Sports - Athletics", "4-7": "Motor Sports", "4-8": "Water Sports",
	"4-9": "Winter Sports", "4-10": "Sports - Equestrian",
	"4-11": "Sports - Martial Arts", "4-13": "Sports - Cricket",
	"4-14": "Sports - Cycling", "4-15": "Sports Talk Show",

	// Children
	"5-0": "Childrens - General", "5-1": "Childrens - Pre-school",
	"5-2": "Childrens - Ages 6-14", "5-3": "Childrens - Ages 10-16",
	"5-4": "Childrens - Educational/Informational", "5-5": "Childrens - Cartoon/Puppets",

	// Music
	"6-0": "Music - General", "6-1": "Music - Rock/Pop", "6-2": "Music - Classical/Opera",
	"6-3": "Music - Folk/Traditional", "6-4": "Music - Jazz", "6-5": "Music - Musical/Opera",
	"6-6": "Music - Ballet", "6-7": "Music - Religious", "6-8": "Music - Countdown",
	"6-9": "Music - Gospel", "6-15": "Music - Special",

	// Arts/Culture
	"7-0": "Arts/Culture", "7-1": "Performing Arts", "7-2": "Fine Arts",
	"7-3": "Religion", "7-5": "Literature", "7-6": "Film/Cinema", "7-10": "Magazine",

	// Social/Political/Economics
	"8-0": "News/Current Affairs", "8-1": "Magazine/Documentary",
	"8-2": "Social Advisory", "8-3": "Documentary", "8-4": "Social/Political/Economics",

	// Education/Science/Factual
	"9-0": "Education/Science/Factual", "9-1": "Nature/Animals/Environment",
	"9-2": "Technology/Natural Science", "9-3": "Medicine/Physiology/Psychology",
	"9-6": "Further Education", "9-8": "Education/Science/Factual",
	"9-9": "Education/Science/Factual", "9-10": "Education/Science/Factual",
	"9-11": "Travel", "9-12": "Education/Science/Factual",
	"9-13": "Education/Science/Factual", "9-14": "Education/Science/Factual",
	"9-15": "Education/Science/Factual",

	// Leisure/Hobbies
	"10-0": "Leisure/Hobbies", "10-1": "Tourism/Travel", "10-2": "Craft",
	"10-3": "Fishing/Motoring", "10-4": "Fitness/Health", "10-5": "Cooking",
	"10-6": "Shopping/Advertisement", "10-7": "Home/Gardening",
	"10-8": "Leisure/Hobbies", "10-10": "Reality", "10-11": "Home/Design",
	"10-12": "Property/Reality",

	// Special News/Entertainment
	"11-0": "Special News/Entertainment", "11-1": "Special News/Entertainment",
	"11-3": "Live broadcast", "11-5": "Special News/Entertainment",
	"11-6": "International", "11-7": "Special News/Entertainment",
	"11-8": "Special News/Entertainment", "11-9": "Special News/Entertainment",
	"11-10": "Special News/Entertainment", "11-11": "Special News/Entertainment",
	"11-12": "Special News/Entertainment", "11-13": "Special News/Entertainment",
	"11-14": "Special News/Entertainment",

	// Adult
	"15-0": "Adult", "15-1": "Adult", "15-5": "Adult", "15-8": "Adult",
}

func (CategoryList) Name() string { return "category_list" }

func (CategoryList) Process(p *program.Program) {
	if p.Content1 == "" || p.Content2 == "" {
		return
	}
	if t, ok := categoryTypes[p.Content1]; ok {
		p.CategoryType = t
	}
	if n, ok := categoryNames[p.Content1+"-"+p.Content2]; ok {
		p.CategoryName = n
	}
}

const categorySchema = `CREATE TABLE IF NOT EXISTS categories(
	id INTEGER PRIMARY KEY,
	title VARCHAR,
	cat_type VARCHAR,
	cat VARCHAR
)`

// CategoryDB looks titles up in a user maintained SQLite table.
type CategoryDB struct {
	db   *sql.DB
	stmt *sql.Stmt
}

// NewCategoryDB opens cfg.CategoryDB and creates the categories table when
// missing. Without a configured database the processor is inactive.
func NewCategoryDB(ctx context.Context, cfg Config) Outcome {
	const name = "category_db"
	if cfg.CategoryDB == "" {
		return Inactive(name, "no categoryDb.database configured")
	}

	db, err := sqlite.Open(ctx, cfg.CategoryDB, sqlite.DefaultConfig())
	if err != nil {
		return Inactive(name, err.Error())
	}
	if _, err := db.ExecContext(ctx, categorySchema); err != nil {
		_ = db.Close()
		return Inactive(name, fmt.Sprintf("create schema: %v", err))
	}
	stmt, err := db.PrepareContext(ctx, `SELECT cat_type, cat FROM categories WHERE title LIKE ? LIMIT 1`)
	if err != nil {
		_ = db.Close()
		return Inactive(name, fmt.Sprintf("prepare lookup: %v", err))
	}
	return Active(&CategoryDB{db: db, stmt: stmt})
}

func (*CategoryDB) Name() string { return "category_db" }

func (c *CategoryDB) Process(p *program.Program) {
	var catType, cat sql.NullString
	err := c.stmt.QueryRowContext(context.Background(), p.Title).Scan(&catType, &cat)
	if errors.Is(err, sql.ErrNoRows) {
		return
	}
	logger := log.WithComponent("processor").With().Str(log.FieldProcessor, c.Name()).Logger()
	if err != nil {
		logger.Debug().Err(err).Str(log.FieldTitle, p.Title).Msg("category lookup failed")
		return
	}
	p.CategoryType = catType.String
	p.CategoryName = cat.String
	logger.Debug().Str(log.FieldTitle, p.Title).Str("category", cat.String).Msg("set category")
}

func (c *CategoryDB) Close() error {
	_ = c.stmt.Close()
	return c.db.Close()
}
