package parse

import (
	"fmt"
	"strings"

	"laundry-reservation-backend/internal/model"
)

// collections is the fixed collection layout of a machine document path.
var collections = [...]string{"countries", "cities", "universities", "dorms", "machines"}

// MachinePath parses a document path of the form
// countries/{country}/cities/{city}/universities/{univ}/dorms/{dorm}/machines/{machine}.
// Leading and trailing slashes are ignored.
func MachinePath(doc string) (model.MachinePath, error) {
	s := strings.Trim(strings.TrimSpace(doc), "/")
	parts := strings.Split(s, "/")
	if len(parts) != 2*len(collections) {
		return model.MachinePath{}, fmt.Errorf("unable to parse machine path %q: want %d segments, got %d", doc, 2*len(collections), len(parts))
	}

	ids := make([]string, len(collections))
	for i, name := range collections {
		if parts[2*i] != name {
			return model.MachinePath{}, fmt.Errorf("unable to parse machine path %q: segment %d is %q, want %q", doc, 2*i, parts[2*i], name)
		}
		id := strings.TrimSpace(parts[2*i+1])
		if id == "" {
			return model.MachinePath{}, fmt.Errorf("unable to parse machine path %q: empty %s id", doc, name)
		}
		ids[i] = id
	}

	return model.MachinePath{
		Country:    ids[0],
		City:       ids[1],
		University: ids[2],
		Dorm:       ids[3],
		MachineID:  ids[4],
	}, nil
}
