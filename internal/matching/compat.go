package matching

// bloodDonationTable lists, per donor blood type, the recipient types that
// donor can give to. This is the registry's donation table; codes absent
// from it are incompatible by definition.
var bloodDonationTable = map[string]map[string]bool{
	"O-":  {"O-": true, "O+": true, "A-": true, "A+": true, "B-": true, "B+": true, "AB-": true, "AB+": true},
	"O+":  {"O+": true, "A+": true, "B+": true, "AB+": true},
	"A-":  {"A-": true, "A+": true, "AB-": true, "AB+": true},
	"A+":  {"A+": true, "AB+": true},
	"B-":  {"B-": true, "B+": true, "AB-": true, "AB+": true},
	"B+":  {"B+": true, "AB+": true},
	"AB-": {"AB-": true, "AB+": true},
	"AB+": {"AB+": true},
}

// IsBloodCompatible reports whether a donor of donorType can give to a
// recipient of recipientType. It is total over all strings: anything outside
// the eight canonical codes is incompatible, never an error.
func IsBloodCompatible(donorType, recipientType string) bool {
	return bloodDonationTable[donorType][recipientType]
}

// HasOrgan reports whether organ is a member of the offered organ set.
// Comparison is case-sensitive; organ names are canonicalised at intake.
func HasOrgan(organs []string, organ string) bool {
	for _, o := range organs {
		if o == organ {
			return true
		}
	}
	return false
}
