package models

// Identifier is the sole currency for cross-entity references inside the
// engine: an ERP model name plus the remote integer id.
type Identifier struct {
	Model string
	ID    int64
}

func (id Identifier) Zero() bool { return id.ID == 0 }

// LineCommand is one of the ERP's one2many command tuples. The server
// interprets them inside create/write payloads:
//
//	(0, 0, values)   create a new line
//	(2, id, 0)       delete an existing line
//	(6, 0, [ids])    replace the whole set
type LineCommand []any

func CreateLineCommand(values map[string]any) LineCommand {
	return LineCommand{int64(0), int64(0), values}
}

func DeleteLineCommand(id int64) LineCommand {
	return LineCommand{int64(2), id, int64(0)}
}

func ReplaceLinesCommand(ids []int64) LineCommand {
	anyIDs := make([]any, len(ids))
	for i, id := range ids {
		anyIDs[i] = id
	}
	return LineCommand{int64(6), int64(0), anyIDs}
}

// Commands converts a command list into the []any shape the XML-RPC
// marshaller expects inside a payload value.
func Commands(cmds []LineCommand) []any {
	out := make([]any, len(cmds))
	for i, c := range cmds {
		out[i] = []any(c)
	}
	return out
}
