package api

import (
	"net/http"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/catalog"
	"github.com/hackgods/car-maintenance-booking/internal/shop"
)

func listShopsHandler(svc ShopService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := queryPage(r)
		list, total, err := svc.ListActiveShops(r.Context(), r.URL.Query().Get("city"), page)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pageResponse(mapSlice(list, toShopResponse), total, page))
	}
}

func getShopHandler(svc ShopService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		sh, err := svc.GetShop(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toShopResponse(*sh))
	}
}

func registerShopHandler(svc ShopService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ShopRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		sh, err := svc.RegisterShop(r.Context(), principal(r).UserID, req.input())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toShopResponse(*sh))
	}
}

func myShopHandler(svc ShopService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sh, err := svc.ShopByOwner(r.Context(), principal(r).UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toShopResponse(*sh))
	}
}

func updateMyShopHandler(svc ShopService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ShopRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		p := principal(r)
		sh, err := svc.UpdateShop(r.Context(), p, p.ShopID, req.input())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toShopResponse(*sh))
	}
}

func adminListShopsHandler(svc ShopService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f shop.ListFilter
		q := r.URL.Query()
		if raw := q.Get("status"); raw != "" {
			st := shop.Status(raw)
			if !st.Valid() {
				writeServiceError(w, r, apperr.Validation("unknown shop status %q", raw))
				return
			}
			f.Status = &st
		}
		if city := q.Get("city"); city != "" {
			f.City = &city
		}
		page := queryPage(r)

		list, total, err := svc.ListShops(r.Context(), f, page)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pageResponse(mapSlice(list, toShopResponse), total, page))
	}
}

func shopStatusHandler(svc ShopService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req ShopStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		sh, err := svc.SetStatus(r.Context(), id, shop.Status(req.Status))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toShopResponse(*sh))
	}
}

// vehicles

func addVehicleHandler(svc VehicleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VehicleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		v, err := svc.AddVehicle(r.Context(), principal(r).UserID, req.input())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toVehicleResponse(*v))
	}
}

func getVehicleHandler(svc VehicleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		v, err := svc.OwnedVehicle(r.Context(), id, principal(r).UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toVehicleResponse(*v))
	}
}

func updateVehicleHandler(svc VehicleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req VehicleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		v, err := svc.UpdateVehicle(r.Context(), id, principal(r).UserID, req.input())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toVehicleResponse(*v))
	}
}

func listVehiclesHandler(svc VehicleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListVehicles(r.Context(), principal(r).UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, mapSlice(list, toVehicleResponse))
	}
}

func deleteVehicleHandler(svc VehicleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if err := svc.DeleteVehicle(r.Context(), id, principal(r).UserID); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// catalog

func shopItemsHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		items, err := svc.ListShopItems(r.Context(), shopID, r.URL.Query().Get("category"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, mapSlice(items, toItemResponse))
	}
}

func shopPackagesHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		pkgs, err := svc.ListShopPackages(r.Context(), shopID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, mapSlice(pkgs, toPackageResponse))
	}
}

func itemResultResponse(res *catalog.ItemResult) ItemResponse {
	resp := toItemResponse(*res.Item)
	resp.PriceStatus = string(res.PriceStatus)
	return resp
}

func createItemHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ItemRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		res, err := svc.CreateItem(r.Context(), principal(r).ShopID, req.input())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, itemResultResponse(res))
	}
}

func updateItemHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req ItemRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		res, err := svc.UpdateItem(r.Context(), principal(r).ShopID, id, req.input())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, itemResultResponse(res))
	}
}

func deleteItemHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if err := svc.DeleteItem(r.Context(), principal(r).ShopID, id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func createPackageHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PackageRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		pkg, err := svc.CreatePackage(r.Context(), principal(r).ShopID, req.input())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPackageResponse(*pkg))
	}
}

func updatePackageHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req PackageRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		pkg, err := svc.UpdatePackage(r.Context(), principal(r).ShopID, id, req.input())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toPackageResponse(*pkg))
	}
}

func deletePackageHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if err := svc.DeletePackage(r.Context(), principal(r).ShopID, id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func saveGuidePriceHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GuidePriceRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		g, err := svc.SaveGuidePrice(r.Context(), catalog.GuidePrice{
			ID:          req.ID,
			ServiceName: req.ServiceName,
			Category:    req.Category,
			MinPrice:    req.MinPrice,
			GuidePrice:  req.GuidePrice,
			MaxPrice:    req.MaxPrice,
			Active:      true,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		status := http.StatusCreated
		if req.ID != 0 {
			status = http.StatusOK
		}
		writeJSON(w, status, toGuidePriceResponse(*g))
	}
}

func listGuidePricesHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListGuidePrices(r.Context(), r.URL.Query().Get("category"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, mapSlice(list, toGuidePriceResponse))
	}
}

func deactivateGuidePriceHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if err := svc.DeactivateGuidePrice(r.Context(), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func priceMonitorHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f catalog.MonitorFilter
		shopID, err := queryInt64(r, "shop_id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		f.ShopID = shopID
		if raw := r.URL.Query().Get("status"); raw != "" {
			st := catalog.PriceStatus(raw)
			switch st {
			case catalog.PriceNormal, catalog.PriceTooHigh, catalog.PriceTooLow:
			default:
				writeServiceError(w, r, apperr.Validation("unknown price status %q", raw))
				return
			}
			f.Status = &st
		}
		page := queryPage(r)

		list, total, err := svc.MonitorRecords(r.Context(), f, page)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pageResponse(mapSlice(list, toMonitorRecordResponse), total, page))
	}
}

func priceStatsHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.PriceStats(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, PriceStatsResponse{
			TooHigh:        stats.TooHigh,
			TooLow:         stats.TooLow,
			TotalAbnormal:  stats.TotalAbnormal(),
			RecentAbnormal: mapSlice(stats.RecentAbnormal, toMonitorRecordResponse),
		})
	}
}
