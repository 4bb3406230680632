package certificate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "short name stays on one line",
			input: "Ana Souza",
			want:  []string{"Ana Souza"},
		},
		{
			name:  "exactly thirty characters",
			input: "Maria Aparecida da Silva Costa",
			want:  []string{"Maria Aparecida da Silva Costa"},
		},
		{
			name:  "space inside the break window",
			input: "Francisco Albuquerque Nascimento ", // 33 chars, space at 9
			want:  []string{"Francisco", "Albuquerque Nascimento"},
		},
		{
			name:  "last space in window wins",
			input: "Ana Beatriz Oliveira de Vasconcelos", // spaces at 3 and 11
			want:  []string{"Ana Beatriz", "Oliveira de Vasconcelos"},
		},
		{
			name:  "no space before fifteen hard breaks",
			input: "Maximilianoalberto Rodriguez Sanchez",
			want:  []string{"Maximilianoalbe", "anchez"},
		},
		{
			name:  "accented characters count as one",
			input: "João Conceição Albuquerque Magalhães",
			want:  []string{"João Conceição", "Albuquerque Magalhães"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitName(tt.input)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), 2)
		})
	}
}

func TestSplitName_ThirtyFiveCharsWithSpaceAtTen(t *testing.T) {
	name := "Abcdefghij Klmnopqrstuvwxyzabcdefgh"
	assert.Len(t, []rune(name), 35)

	got := SplitName(name)
	assert.Equal(t, []string{"Abcdefghij", "Klmnopqrstuvwxyzabcdefgh"}, got)
}

func TestSplitName_ThirtyFiveCharsNoSpace(t *testing.T) {
	name := "Abcdefghijklmnopqrstuvwxyzabcd efgh"
	assert.Len(t, []rune(name), 35)

	got := SplitName(name)
	assert.Equal(t, []string{"Abcdefghijklmno", "efgh"}, got)
}
