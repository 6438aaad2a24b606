package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetric_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in     string
		valid  bool
		usable bool
		value  float64
	}{
		{in: `65.5`, valid: true, usable: true, value: 65.5},
		{in: `"22.10"`, valid: true, usable: true, value: 22.1},
		{in: `" 18 "`, valid: true, usable: true, value: 18},
		{in: `null`, valid: false, usable: false},
		{in: `"abc"`, valid: true, usable: false},
		{in: `""`, valid: true, usable: false},
		{in: `true`, valid: true, usable: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var m Metric
			require.NoError(t, json.Unmarshal([]byte(tt.in), &m))
			assert.Equal(t, tt.valid, m.Valid)
			assert.Equal(t, tt.usable, m.Usable())
			if tt.usable {
				assert.Equal(t, tt.value, m.Value)
			}
		})
	}
}

func TestMetric_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(FeedRecord{CreatedAt: "x", Humidity: NewMetric(60.5), Temperature: Metric{Value: math.NaN(), Valid: true}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"created_at":"x","field1":60.5,"field2":null}`, string(data))
}

func TestFeedRecord_MissingFieldIsNull(t *testing.T) {
	var rec FeedRecord
	require.NoError(t, json.Unmarshal([]byte(`{"created_at":"2024-05-01T10:00:00Z","field2":21}`), &rec))
	assert.False(t, rec.Humidity.Valid)
	assert.True(t, rec.Temperature.Usable())
}

func TestParseTimestamp(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)

	for _, s := range []string{"2024-05-01T10:00:00Z", "2024-05-01T10:00:00.123-03:00"} {
		_, err := ParseTimestamp(s, loc)
		assert.NoError(t, err, s)
	}

	got, err := ParseTimestamp("2024-05-01T10:00", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, loc), got)

	got, err = ParseTimestamp("2024-05-01 10:00:05", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Second())

	_, err = ParseTimestamp("01/05/2024", loc)
	assert.Error(t, err)
}

func TestUserInput_Validate(t *testing.T) {
	valid := UserInput{Nome: "Ana", Email: "ana@example.com", Senha: "x", ConfirmarSenha: "x"}
	assert.NoError(t, valid.Validate(true))

	tests := map[string]struct {
		in     UserInput
		create bool
		field  string
	}{
		"missing name":       {in: UserInput{Email: "a@b.co"}, field: "nome"},
		"bad email":          {in: UserInput{Nome: "A", Email: "a@b"}, field: "email"},
		"email with spaces":  {in: UserInput{Nome: "A", Email: "a b@c.co"}, field: "email"},
		"password on create": {in: UserInput{Nome: "A", Email: "a@b.co"}, create: true, field: "senha"},
		"mismatch":           {in: UserInput{Nome: "A", Email: "a@b.co", Senha: "1", ConfirmarSenha: "2"}, field: "confirmarSenha"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.in.Validate(tt.create)
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	assert.NoError(t, UserInput{Nome: "A", Email: "a@b.co"}.Validate(false), "password is optional on update")
}

func TestUserInput_Normalize(t *testing.T) {
	in := UserInput{Nome: "  Ana ", Email: " ana@example.com "}
	in.Normalize()

	assert.Equal(t, "Ana", in.Nome)
	assert.Equal(t, "ana@example.com", in.Email)
	assert.Equal(t, "Operador", in.Funcao)
	assert.Equal(t, "Ativo", in.Status)
	assert.False(t, User{Funcao: in.Funcao}.IsAdmin())
	assert.True(t, User{Funcao: RoleAdmin}.IsAdmin())
}
