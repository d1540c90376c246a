package api

import (
	"net/http"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/booking"
)

func availableSlotsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		date, err := queryDate(r, "date")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if date == nil {
			writeServiceError(w, r, apperr.Validation("date is required"))
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), shopID, *date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if slots == nil {
			slots = []string{}
		}
		writeJSON(w, http.StatusOK, SlotsResponse{ShopID: shopID, Date: date.Format("2006-01-02"), Slots: slots})
	}
}

func checkSlotHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		date, err := queryDate(r, "date")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		slot := r.URL.Query().Get("slot")
		if date == nil || slot == "" {
			writeServiceError(w, r, apperr.Validation("date and slot are required"))
			return
		}

		ok, err := svc.CheckSlotAvailable(r.Context(), shopID, *date, slot)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, SlotCheckResponse{
			ShopID:    shopID,
			Date:      date.Format("2006-01-02"),
			TimeSlot:  slot,
			Available: ok,
		})
	}
}

func createAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		date, err := booking.ParseDay(req.Date)
		if err != nil {
			writeServiceError(w, r, apperr.Validation("%v", err))
			return
		}

		detail, err := svc.CreateAppointment(r.Context(), principal(r).UserID, booking.AppointmentInput{
			ShopID:    req.ShopID,
			VehicleID: req.VehicleID,
			Date:      date,
			TimeSlot:  req.TimeSlot,
			BayNumber: req.BayNumber,
			Items:     lineItemInputs(req.Items),
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentDetailResponse(detail))
	}
}

func listMyAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := queryAppointmentStatus(r)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		page := queryPage(r)

		list, total, err := svc.ListCustomerAppointments(r.Context(), principal(r).UserID, status, page)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pageResponse(mapSlice(list, toAppointmentResponse), total, page))
	}
}

func getAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		detail, err := svc.GetAppointmentDetail(r.Context(), principal(r), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentDetailResponse(detail))
	}
}

func updateAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req UpdateAppointmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		in := booking.UpdateAppointmentInput{
			VehicleID: req.VehicleID,
			TimeSlot:  req.TimeSlot,
			Items:     lineItemInputs(req.Items),
		}
		if req.Date != nil {
			d, err := booking.ParseDay(*req.Date)
			if err != nil {
				writeServiceError(w, r, apperr.Validation("%v", err))
				return
			}
			in.Date = &d
		}

		detail, err := svc.UpdateAppointment(r.Context(), id, principal(r).UserID, in)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentDetailResponse(detail))
	}
}

func cancelAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req CancelRequest
		if err := decodeOptionalJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), id, principal(r).UserID, req.Reason)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func shopAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := queryAppointmentStatus(r)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		date, err := queryDate(r, "date")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		page := queryPage(r)

		list, total, err := svc.ListShopAppointments(r.Context(), principal(r).ShopID, status, date, page)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pageResponse(mapSlice(list, toAppointmentResponse), total, page))
	}
}

func shopAppointmentStatsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.ShopAppointmentStats(r.Context(), principal(r).ShopID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		resp := AppointmentStatsResponse{Total: stats.Total, Today: stats.Today, ByStatus: map[string]int{}}
		for st, n := range stats.ByStatus {
			resp.ByStatus[string(st)] = n
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func appointmentStatusHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req AppointmentStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), principal(r), id, booking.AppointmentStatus(req.Status))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func assignBayHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req BayRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		appt, err := svc.AssignBay(r.Context(), principal(r), id, req.BayNumber)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

// orders

func createOrderHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateOrderRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		order, err := svc.CreateOrder(r.Context(), principal(r).UserID, booking.OrderInput{
			AppointmentID: req.AppointmentID,
			Discount:      req.DiscountAmount,
			Method:        booking.PaymentMethod(req.PaymentMethod),
			TechnicianID:  req.TechnicianID,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toOrderResponse(*order))
	}
}

func listMyOrdersHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := queryOrderStatus(r)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		page := queryPage(r)

		list, total, err := svc.ListCustomerOrders(r.Context(), principal(r).UserID, status, page)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pageResponse(mapSlice(list, toOrderResponse), total, page))
	}
}

func getOrderHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		detail, err := svc.GetOrderDetail(r.Context(), principal(r), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		resp := toOrderResponse(detail.Order)
		if detail.Appointment != nil {
			a := toAppointmentResponse(*detail.Appointment)
			resp.Appointment = &a
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func payOrderHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req PayOrderRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		if req.PaymentMethod == "" {
			writeServiceError(w, r, apperr.Validation("payment_method is required"))
			return
		}

		order, err := svc.PayOrder(r.Context(), id, principal(r).UserID, booking.PaymentMethod(req.PaymentMethod))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(*order))
	}
}

func cancelOrderHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req CancelRequest
		if err := decodeOptionalJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		order, err := svc.CancelOrder(r.Context(), id, principal(r).UserID, req.Reason)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(*order))
	}
}

func shopOrdersHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := queryOrderStatus(r)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		page := queryPage(r)

		list, total, err := svc.ListShopOrders(r.Context(), principal(r).ShopID, status, page)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pageResponse(mapSlice(list, toOrderResponse), total, page))
	}
}

// adminOrdersHandler searches all orders by user_id, shop_id, status and a
// start_date/end_date window.
func adminOrdersHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q booking.OrderQuery
		var err error
		if q.UserID, err = queryInt64(r, "user_id"); err != nil {
			writeServiceError(w, r, err)
			return
		}
		if q.ShopID, err = queryInt64(r, "shop_id"); err != nil {
			writeServiceError(w, r, err)
			return
		}
		if q.Status, err = queryOrderStatus(r); err != nil {
			writeServiceError(w, r, err)
			return
		}
		if q.From, err = queryDate(r, "start_date"); err != nil {
			writeServiceError(w, r, err)
			return
		}
		if q.To, err = queryDate(r, "end_date"); err != nil {
			writeServiceError(w, r, err)
			return
		}
		page := queryPage(r)

		list, total, err := svc.ListOrders(r.Context(), q, page)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pageResponse(mapSlice(list, toOrderResponse), total, page))
	}
}

func shopOrderStatsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.ShopOrderStats(r.Context(), principal(r).ShopID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		resp := OrderStatsResponse{
			Total:        stats.Total,
			Today:        stats.Today,
			ByStatus:     map[string]int{},
			Revenue:      stats.Revenue,
			TodayRevenue: stats.TodayRevenue,
		}
		for st, n := range stats.ByStatus {
			resp.ByStatus[string(st)] = n
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func startServiceHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req StartServiceRequest
		if err := decodeOptionalJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		order, err := svc.StartService(r.Context(), principal(r), id, req.TechnicianID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(*order))
	}
}

func completeServiceHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		done, err := svc.CompleteService(r.Context(), principal(r), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, CompletionResponse{Order: toOrderResponse(done.Order), Experience: done.Experience})
	}
}

func assignTechnicianHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req TechnicianRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		order, err := svc.AssignTechnician(r.Context(), principal(r), id, req.TechnicianID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(*order))
	}
}

func orderStatusHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req OrderStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		order, err := svc.UpdateOrderStatus(r.Context(), principal(r), id, booking.OrderStatus(req.Status))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(*order))
	}
}
