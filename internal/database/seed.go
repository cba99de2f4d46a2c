package database

import (
	"context"

	"precioverdadero/internal/models"
)

// SampleKnowledge is loaded into an empty knowledge base.
var SampleKnowledge = []models.KnowledgeEntry{
	{
		Title:    "Bienvenida",
		Content:  "Precio Verdadero es una plataforma innovadora que ayuda a los usuarios a encontrar precios justos y transparentes. Nuestro objetivo es eliminar las sorpresas en los precios y proporcionar información clara y confiable.",
		Category: models.CategoryCompanyManual,
	},
	{
		Title:    "Servicios Principales",
		Content:  "Ofrecemos comparación de precios en tiempo real, análisis de tendencias de precios, alertas de precios, y un sistema de calificación de proveedores basado en transparencia y honestidad.",
		Category: models.CategoryCompanyManual,
	},
	{
		Title:    "Cómo usar la plataforma",
		Content:  "Para usar Precio Verdadero, simplemente busca el producto o servicio que necesitas. Nuestro sistema te mostrará una comparación de precios de diferentes proveedores, incluyendo información sobre impuestos y costos ocultos.",
		Category: models.CategoryUserManual,
	},
	{
		Title:    "Política de Transparencia",
		Content:  "En Precio Verdadero, creemos firmemente en la transparencia total. Todos los precios mostrados incluyen todos los costos, sin cargos ocultos. Si encuentras alguna discrepancia, por favor repórtala y la investigaremos inmediatamente.",
		Category: models.CategoryCompanyManual,
	},
}

// SeedKnowledge inserts SampleKnowledge when the table is empty and
// returns how many entries were added.
func (d *Database) SeedKnowledge(ctx context.Context) (int, error) {
	n, err := d.CountKnowledge(ctx)
	if err != nil || n > 0 {
		return 0, err
	}
	for i, k := range SampleKnowledge {
		if _, err := d.AddKnowledge(ctx, k.Title, k.Content, k.Category); err != nil {
			return i, err
		}
	}
	return len(SampleKnowledge), nil
}
