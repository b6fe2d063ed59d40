package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"Inversión en Fondos Mutuos", "Total de Activo"},
		splitList(" Inversión en Fondos Mutuos ,, Total de Activo,"))
	assert.Nil(t, splitList(""))
}
