package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/address"
)

type addressForm struct {
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"mobileNumber"`
	Line1      string `json:"address" validate:"required"`
	Line2      string `json:"locality"`
	Landmark   string `json:"landmark"`
	City       string `json:"cityDistrictTown" validate:"required"`
	State      string `json:"state"`
	PostalCode string `json:"pinCode" validate:"required"`
	Kind       string `json:"addressType" validate:"omitempty,oneof=home work"`
}

func (f addressForm) address() address.Address {
	return address.Address{
		Name:       f.Name,
		Phone:      f.Phone,
		Line1:      f.Line1,
		Line2:      f.Line2,
		Landmark:   f.Landmark,
		City:       f.City,
		State:      f.State,
		PostalCode: f.PostalCode,
		Kind:       f.Kind,
	}
}

type addAddressRequest struct {
	Address addressForm `json:"address"`
}

type editAddressRequest struct {
	ID      string      `json:"_id" validate:"required"`
	Address addressForm `json:"address"`
}

type deleteAddressRequest struct {
	Payload struct {
		ID string `json:"addressId" validate:"required"`
	} `json:"payload"`
}

// ListAddresses handles GET /address/get.
func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	list, err := h.addresses.List(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("addresses", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, a := range list {
					encodeAddress(e, a)
				}
			})
		})
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

// AddAddress handles POST /address/add.
func (h *Handler) AddAddress(w http.ResponseWriter, r *http.Request) {
	var req addAddressRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.addresses.Add(r.Context(), UserIDFromContext(r.Context()), req.Address.address())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeAddress(w, http.StatusCreated, *a)
}

// EditAddress handles POST /address/edit.
func (h *Handler) EditAddress(w http.ResponseWriter, r *http.Request) {
	var req editAddressRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := req.Address.address()
	in.ID = req.ID
	a, err := h.addresses.Update(r.Context(), UserIDFromContext(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeAddress(w, http.StatusOK, *a)
}

// DeleteAddress handles DELETE /address/delete.
func (h *Handler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	var req deleteAddressRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.addresses.Delete(r.Context(), UserIDFromContext(r.Context()), req.Payload.ID); err != nil {
		h.writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("addressId", func(e *jx.Encoder) { e.Str(req.Payload.ID) })
	})
	writeJSON(w, http.StatusAccepted, e.Bytes())
}

func writeAddress(w http.ResponseWriter, status int, a address.Address) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("address", func(e *jx.Encoder) { encodeAddress(e, a) })
	})
	writeJSON(w, status, e.Bytes())
}

func encodeAddress(e *jx.Encoder, a address.Address) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("_id", func(e *jx.Encoder) { e.Str(a.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(a.Name) })
		e.Field("mobileNumber", func(e *jx.Encoder) { e.Str(a.Phone) })
		e.Field("address", func(e *jx.Encoder) { e.Str(a.Line1) })
		e.Field("locality", func(e *jx.Encoder) { e.Str(a.Line2) })
		e.Field("landmark", func(e *jx.Encoder) { e.Str(a.Landmark) })
		e.Field("cityDistrictTown", func(e *jx.Encoder) { e.Str(a.City) })
		e.Field("state", func(e *jx.Encoder) { e.Str(a.State) })
		e.Field("pinCode", func(e *jx.Encoder) { e.Str(a.PostalCode) })
		e.Field("addressType", func(e *jx.Encoder) { e.Str(a.Kind) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(a.CreatedAt.UTC().Format(time.RFC3339)) })
	})
}
