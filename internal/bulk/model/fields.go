package model

// Identifier field names used for store lookups. Entities can be addressed
// by the server id or, before one is assigned, by the client reference id.
const (
	FieldID                = "id"
	FieldClientReferenceID = "clientReferenceId"
)

// IDFieldFor picks the lookup field for a batch: the server id when any
// entity carries one, the client reference id otherwise. A batch never mixes
// the two unresolved.
func IDFieldFor[T Entity](entities []T) string {
	for _, e := range entities {
		if e.GetID() != "" {
			return FieldID
		}
	}
	return FieldClientReferenceID
}

// Key returns the entity's value for the given identifier field.
func Key[T Entity](e T, field string) string {
	if field == FieldClientReferenceID {
		return e.GetClientReferenceID()
	}
	return e.GetID()
}

// IDList collects the identifier values of a batch for the given field,
// skipping empties.
func IDList[T Entity](entities []T, field string) []string {
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		if key := Key(e, field); key != "" {
			ids = append(ids, key)
		}
	}
	return ids
}

// ByKey indexes a batch by the given identifier field. Later entries win on
// duplicates, matching read-your-last-write for repeated keys.
func ByKey[T Entity](entities []T, field string) map[string]T {
	m := make(map[string]T, len(entities))
	for _, e := range entities {
		if key := Key(e, field); key != "" {
			m[key] = e
		}
	}
	return m
}

// GroupByTenant partitions a batch by tenant id, preserving order within
// each group.
func GroupByTenant[T Entity](entities []T) map[string][]T {
	groups := make(map[string][]T)
	for _, e := range entities {
		groups[e.GetTenantID()] = append(groups[e.GetTenantID()], e)
	}
	return groups
}
