package models

// Table identifies a replicated business table.
// Names that do not match a known table map to TableUnknown so newer peers
// can ship tables this build does not understand yet.
type Table int

const (
	TableUnknown Table = iota
	TableUsers
	TableTransactions
	TableRecurringEntries
)

var tableNames = map[Table]string{
	TableUsers:            "users",
	TableTransactions:     "transactions",
	TableRecurringEntries: "recurring_entries",
}

// KnownTables lists every table the sync core can apply, in creation order.
var KnownTables = []Table{TableUsers, TableRecurringEntries, TableTransactions}

// ParseTable maps a table name to its kind
func ParseTable(name string) Table {
	for t, n := range tableNames {
		if n == name {
			return t
		}
	}
	return TableUnknown
}

// String returns the SQL table name
func (t Table) String() string {
	if n, ok := tableNames[t]; ok {
		return n
	}
	return "unknown"
}

// Known reports whether the table can be applied locally
func (t Table) Known() bool {
	_, ok := tableNames[t]
	return ok
}
