package kitting

import (
	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/catalogs/nomenclature"
)

func requireActiveKit(p *nomenclature.Product) error {
	if !p.IsActive {
		return apperror.NewNotFound("product", p.ID).WithDetail("reason", "inactive")
	}
	return requireKit(p)
}

func requireKit(p *nomenclature.Product) error {
	if !p.IsKit {
		return apperror.NewValidation("product is not a kit").
			WithDetail("productId", p.ID.String())
	}
	return nil
}

func errEmptyBOM(kitID id.ID) error {
	return apperror.NewBusinessRule(apperror.CodeBusinessRule, "kit has no bill of materials").
		WithDetail("kitId", kitID.String())
}
