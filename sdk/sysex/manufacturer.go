package sysex

// manufacturerNames maps manufacturer ids, as raw 1 or 3 byte strings, to names.
var manufacturerNames = map[string]string{
	"\x01": "Sequential Circuits",
	"\x04": "Moog",
	"\x06": "Lexicon",
	"\x07": "Kurzweil",
	"\x0F": "Ensoniq",
	"\x10": "Oberheim",
	"\x18": "E-mu",
	"\x33": "Clavia",
	"\x3E": "Waldorf",
	"\x40": "Kawai",
	"\x41": "Roland",
	"\x42": "Korg",
	"\x43": "Yamaha",
	"\x44": "Casio",
	"\x47": "Akai",
	"\x7D": "Non-Commercial",
	"\x7E": "Universal Non-Real Time",
	"\x7F": "Universal Real Time",

	"\x00\x00\x0E": "Alesis",
	"\x00\x00\x66": "Mackie",
	"\x00\x01\x0C": "Line 6",
	"\x00\x20\x29": "Focusrite/Novation",
	"\x00\x20\x32": "Behringer",
	"\x00\x20\x33": "Access Music",
	"\x00\x20\x3C": "Elektron",
	"\x00\x20\x6B": "Arturia",
}

// ManufacturerName returns the name registered for a 1 or 3 byte manufacturer id.
func ManufacturerName(id []byte) (string, bool) {
	name, ok := manufacturerNames[string(id)]
	return name, ok
}
