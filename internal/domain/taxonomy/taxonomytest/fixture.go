// Package taxonomytest provides a small fixed taxonomy for tests.
package taxonomytest

import (
	"testing"

	"github.com/openprogramia/propuestas/internal/domain/taxonomy"
)

// Fixture is a compact taxonomy covering pensions, health, education and security.
const Fixture = `
version: "1.0"
categories:
  Pensiones:
    subcategories:
      AFP:
        keywords: [afp, administradora de fondos, fondos de pensiones, capitalización individual]
      Pensión Básica Universal:
        keywords: [pgu, pensión básica, pensión universal, pensión garantizada]
  Salud:
    subcategories:
      Isapres:
        keywords: [isapre, seguro privado, plan de salud, cotización salud]
      Fonasa:
        keywords: [fonasa, salud pública, sistema público]
      Listas de Espera:
        keywords: [lista de espera, listas de espera, tiempos de espera, atención oportuna]
  Educación:
    subcategories:
      Educación Superior:
        keywords: [universidad, gratuidad, cae, crédito universitario]
  Seguridad:
    subcategories:
      Narcotráfico:
        keywords: [narcotráfico, drogas, crimen organizado, tráfico]
metadata:
  total_categories: 4
  total_subcategories: 7
  confidence_threshold: 0.25
  fallback_category: Institucionalidad
`

// Load parses Fixture or fails the test.
func Load(tb testing.TB) *taxonomy.Taxonomy {
	tb.Helper()
	t, err := taxonomy.Parse([]byte(Fixture))
	if err != nil {
		tb.Fatalf("parse fixture taxonomy: %v", err)
	}
	return t
}
