package types

import "fmt"

// Functionality names the business operation a transaction body requests.
type Functionality uint8

const (
	FunctionalityNone           Functionality = 0x00
	FunctionalityCryptoTransfer Functionality = 0x01
	FunctionalityCryptoCreate   Functionality = 0x02
	FunctionalityCryptoDelete   Functionality = 0x03
	FunctionalityFileUpdate     Functionality = 0x04
	FunctionalityFileAppend     Functionality = 0x05
	FunctionalityFreeze         Functionality = 0x06
	FunctionalitySystemDelete   Functionality = 0x07
)

var functionalityNames = map[Functionality]string{
	FunctionalityNone:           "NONE",
	FunctionalityCryptoTransfer: "CryptoTransfer",
	FunctionalityCryptoCreate:   "CryptoCreate",
	FunctionalityCryptoDelete:   "CryptoDelete",
	FunctionalityFileUpdate:     "FileUpdate",
	FunctionalityFileAppend:     "FileAppend",
	FunctionalityFreeze:         "Freeze",
	FunctionalitySystemDelete:   "SystemDelete",
}

func (f Functionality) String() string {
	if name, ok := functionalityNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Functionality(%d)", uint8(f))
}

// ParseFunctionality resolves a functionality by its canonical name.
func ParseFunctionality(name string) (Functionality, bool) {
	for f, n := range functionalityNames {
		if n == name {
			return f, true
		}
	}
	return FunctionalityNone, false
}

// Functionalities lists every dispatchable functionality in ascending order.
func Functionalities() []Functionality {
	return []Functionality{
		FunctionalityCryptoTransfer,
		FunctionalityCryptoCreate,
		FunctionalityCryptoDelete,
		FunctionalityFileUpdate,
		FunctionalityFileAppend,
		FunctionalityFreeze,
		FunctionalitySystemDelete,
	}
}
