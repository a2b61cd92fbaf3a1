package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uteshop/uteshop-api/internal/app"
	"github.com/uteshop/uteshop-api/internal/core"
)

type seedProduct struct {
	Brand    string
	Category string
	core.ProductInput
}

type seedVoucher struct {
	core.VoucherInput
	ValidDays int
}

type catalog struct {
	Brands     []core.BrandInput
	Categories []core.CategoryInput
	Products   []seedProduct
	Vouchers   []seedVoucher
}

var demoCatalog = catalog{
	Brands: []core.BrandInput{
		{Name: "Dior", Description: "Mỹ phẩm và nước hoa cao cấp", Country: "France", Website: "https://www.dior.com"},
		{Name: "Chanel", Description: "Thời trang và nước hoa Pháp", Country: "France", Website: "https://www.chanel.com"},
		{Name: "La Roche-Posay", Description: "Dược mỹ phẩm cho da nhạy cảm", Country: "France", Website: "https://www.laroche-posay.com"},
		{Name: "Innisfree", Description: "Mỹ phẩm thiên nhiên từ đảo Jeju", Country: "South Korea", Website: "https://www.innisfree.com"},
	},
	Categories: []core.CategoryInput{
		{Name: "Chăm sóc da mặt", Description: "Làm sạch, dưỡng và đặc trị"},
		{Name: "Trang điểm", Description: "Sản phẩm tạo lớp trang điểm"},
		{Name: "Nước hoa", Description: "Nước hoa nam, nữ, unisex"},
		{Name: "Chăm sóc môi", Description: "Son, dưỡng môi, tẩy da chết môi"},
	},
	Products: []seedProduct{
		{Brand: "Dior", Category: "Chăm sóc môi", ProductInput: core.ProductInput{
			Name: "Son Dior Rouge 999", Description: "Son môi lì với màu đỏ kinh điển", Price: 1_200_000, Stock: 50, DiscountPercentage: 10,
		}},
		{Brand: "Dior", Category: "Trang điểm", ProductInput: core.ProductInput{
			Name: "Kem nền Dior Forever", Description: "Kem nền che phủ tốt, giữ lớp nền lâu trôi", Price: 1_500_000, Stock: 40,
		}},
		{Brand: "Chanel", Category: "Nước hoa", ProductInput: core.ProductInput{
			Name: "Chanel N°5 Eau de Parfum", Description: "Hương hoa cỏ aldehyde", Price: 3_800_000, Stock: 30,
			Sizes: []core.SizeStock{{Size: "50ml", Stock: 20}, {Size: "100ml", Stock: 10}},
		}},
		{Brand: "La Roche-Posay", Category: "Chăm sóc da mặt", ProductInput: core.ProductInput{
			Name: "Sữa rửa mặt La Roche-Posay Effaclar", Description: "Gel rửa mặt cho da dầu mụn", Price: 420_000, Stock: 120, DiscountPercentage: 15,
		}},
		{Brand: "Innisfree", Category: "Chăm sóc da mặt", ProductInput: core.ProductInput{
			Name: "Mặt nạ đất sét Innisfree", Description: "Mặt nạ tro núi lửa làm sạch lỗ chân lông", Price: 290_000, Stock: 80,
		}},
	},
	Vouchers: []seedVoucher{
		{ValidDays: 90, VoucherInput: core.VoucherInput{
			Code: "WELCOME10", Description: "Giảm 10% cho đơn đầu tiên", DiscountType: core.DiscountPercentage,
			DiscountValue: 10, MaxDiscountAmount: 100_000, MaxIssued: 1000, MaxUsesPerUser: 1,
			RewardType: core.RewardFirstOrder,
		}},
		{ValidDays: 30, VoucherInput: core.VoucherInput{
			Code: "GIAM50K", Description: "Giảm 50.000đ cho đơn từ 500.000đ", DiscountType: core.DiscountFixedAmount,
			DiscountValue: 50_000, MinOrderAmount: 500_000, MaxIssued: 500, MaxUsesPerUser: 2,
		}},
		{ValidDays: 30, VoucherInput: core.VoucherInput{
			Code: "FREESHIP", Description: "Miễn phí vận chuyển", DiscountType: core.DiscountFreeShip,
			MinOrderAmount: 300_000, MaxIssued: 1000, MaxUsesPerUser: 3,
		}},
	},
}

type seedReport struct {
	Brands, Categories, Products, Vouchers int
}

// seed creates whatever part of c is missing. Brands, categories and
// products match by name, vouchers by code, so reruns add nothing.
func seed(ctx context.Context, svc app.Services, repos app.Repos, c catalog) (seedReport, error) {
	var rep seedReport
	all := core.Page{Page: 1, Limit: core.MaxPageSize}

	brands := map[string]string{}
	for _, in := range c.Brands {
		existing, err := svc.Catalog.ListBrands(ctx, in.Name, all)
		if err != nil {
			return rep, err
		}
		id := findByName(existing.Items, in.Name, func(b core.Brand) (string, string) { return b.ID, b.Name })
		if id == "" {
			b, err := svc.Catalog.CreateBrand(ctx, in)
			if err != nil {
				return rep, fmt.Errorf("brand %q: %w", in.Name, err)
			}
			id = b.ID
			rep.Brands++
		}
		brands[in.Name] = id
	}

	categories := map[string]string{}
	for _, in := range c.Categories {
		existing, err := svc.Catalog.ListCategories(ctx, in.Name, all)
		if err != nil {
			return rep, err
		}
		id := findByName(existing.Items, in.Name, func(c core.Category) (string, string) { return c.ID, c.Name })
		if id == "" {
			cat, err := svc.Catalog.CreateCategory(ctx, in)
			if err != nil {
				return rep, fmt.Errorf("category %q: %w", in.Name, err)
			}
			id = cat.ID
			rep.Categories++
		}
		categories[in.Name] = id
	}

	for _, sp := range c.Products {
		existing, err := svc.Products.AdminList(ctx, core.ProductFilter{Search: sp.Name, Page: all})
		if err != nil {
			return rep, err
		}
		if findByName(existing.Items, sp.Name, func(p core.Product) (string, string) { return p.ID, p.Name }) != "" {
			continue
		}
		in := sp.ProductInput
		in.BrandID, in.CategoryID = brands[sp.Brand], categories[sp.Category]
		if _, err := svc.Products.Create(ctx, in); err != nil {
			return rep, fmt.Errorf("product %q: %w", sp.Name, err)
		}
		rep.Products++
	}

	now := time.Now()
	for _, sv := range c.Vouchers {
		_, err := repos.Vouchers.GetByCode(ctx, strings.ToUpper(sv.Code))
		if err == nil {
			continue
		}
		if !errors.Is(err, core.ErrNotFound) {
			return rep, err
		}
		in := sv.VoucherInput
		in.StartDate, in.EndDate = now, now.AddDate(0, 0, sv.ValidDays)
		if _, err := svc.Vouchers.Create(ctx, in); err != nil {
			return rep, fmt.Errorf("voucher %q: %w", sv.Code, err)
		}
		rep.Vouchers++
	}

	// Persist the effective config so admins see a stored document.
	cfg, err := repos.PointsConfig.Get(ctx)
	if err != nil {
		return rep, err
	}
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = now
		if err := repos.PointsConfig.Save(ctx, cfg); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func findByName[T any](items []T, name string, key func(T) (id, name string)) string {
	for _, it := range items {
		if id, n := key(it); strings.EqualFold(n, name) {
			return id
		}
	}
	return ""
}
