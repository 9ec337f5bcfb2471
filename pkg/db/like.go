package db

import "strings"

// LikeEscapeClause must follow every LIKE whose pattern comes from LikePrefix.
const LikeEscapeClause = ` ESCAPE '!'`

var likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

// LikePrefix turns user input into a pattern matching it literally as a prefix.
func LikePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
